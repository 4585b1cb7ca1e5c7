// Package service implements the workflows on top of the domain
// entities and the store. Every mutating workflow runs inside one
// store transaction; audit rows are written in the same transaction as
// the mutation they describe.
package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/metrics"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/seating"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
)

// Deps carries the shared infrastructure of every workflow service.
type Deps struct {
	Store    store.Store
	Tokens   *token.Service
	Queue    jobs.Queue
	Objects  objstore.Store
	Renderer sheet.Renderer
	Seating  *seating.Scheduler
	JWT      *auth.Manager
	Cfg      config.Config
	Metrics  *metrics.Metrics
}

var logger = log.New(log.Writer(), "[SERVICE] ", log.LstdFlags)

// audit appends an audit row through the transactional store view st.
func audit(ctx context.Context, st store.Store, entityType string, entityID uuid.UUID, action string, userID *uuid.UUID, ip string, details map[string]interface{}) error {
	rec, err := domain.NewAuditLog(entityType, entityID, action, userID, ip, details)
	if err != nil {
		return err
	}
	return st.Audit().Append(ctx, rec)
}
