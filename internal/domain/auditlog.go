package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is one append-only record of a state-changing action. Details
// carry enough payload (variant, seat, score, corrected-from) that the
// change can be reconstructed without rereading the mutated entity.
type AuditLog struct {
	ID         uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     string
	UserID     *uuid.UUID
	IPAddress  string
	Details    map[string]interface{}
	Timestamp  time.Time
}

// NewAuditLog validates and builds a record. userID is nil for system
// actions.
func NewAuditLog(entityType string, entityID uuid.UUID, action string, userID *uuid.UUID, ip string, details map[string]interface{}) (AuditLog, error) {
	if entityType == "" {
		return AuditLog{}, E(KindValidation, "audit entity type cannot be empty")
	}
	if action == "" {
		return AuditLog{}, E(KindValidation, "audit action cannot be empty")
	}
	if details == nil {
		details = map[string]interface{}{}
	}
	return AuditLog{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     userID,
		IPAddress:  ip,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}, nil
}
