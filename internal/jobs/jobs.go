// Package jobs is a small named-job queue. The server enqueues work,
// the worker binary dequeues and runs it. Redis backs production;
// tests use the in-memory queue.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
)

// Job names.
const (
	JobProcessScanOCR = "process_scan_ocr"
)

// Job is one unit of queued work.
type Job struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
	// Attempt counts deliveries, starting at 1 for the first run.
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob marshals the payload and stamps a fresh job.
func NewJob(name string, payload interface{}) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, domain.WrapErr(domain.KindFatal, err, "marshal job payload")
	}
	return Job{
		ID:         uuid.New(),
		Name:       name,
		Payload:    raw,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Bind unmarshals the payload into v.
func (j Job) Bind(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return domain.WrapErr(domain.KindFatal, err, "unmarshal job payload")
	}
	return nil
}

// ScanOCRPayload is the payload of JobProcessScanOCR.
type ScanOCRPayload struct {
	ScanID uuid.UUID `json:"scan_id"`
}

// Queue is the broker surface.
type Queue interface {
	// Enqueue makes the job available immediately.
	Enqueue(ctx context.Context, job Job) error
	// EnqueueIn makes the job available after the delay. Used for
	// retries.
	EnqueueIn(ctx context.Context, job Job, delay time.Duration) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
}
