// Package objstore abstracts blob storage for rendered PDFs, uploaded
// scans and personal documents. The production backend keeps objects in
// Redis; tests use the in-memory store.
package objstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Object is a stored blob plus its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the blob storage surface the workflows depend on.
type Store interface {
	Put(ctx context.Context, bucket, key string, obj Object) error
	Get(ctx context.Context, bucket, key string) (Object, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Key layouts. All callers go through these so the buckets stay
// navigable by hand.

// SheetKey is the primary answer sheet PDF of an attempt.
func SheetKey(competitionID, attemptID uuid.UUID) string {
	return fmt.Sprintf("sheets/%s/%s.pdf", competitionID, attemptID)
}

// ExtraSheetKey is an extra sheet PDF issued mid-exam.
func ExtraSheetKey(attemptID, sheetID uuid.UUID) string {
	return fmt.Sprintf("sheets/extra/%s/%s.pdf", attemptID, sheetID)
}

// BadgeKey is the badge PDF produced by a bulk pre-registration.
func BadgeKey(competitionID uuid.UUID) string {
	return fmt.Sprintf("badges/%s.pdf", competitionID)
}

// DocumentKey is a personal document of a participant.
func DocumentKey(participantID uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", participantID, filename)
}

// ScanKey is an uploaded scan file.
func ScanKey(scanID uuid.UUID, ext string) string {
	return fmt.Sprintf("scans/%s.%s", scanID, ext)
}
