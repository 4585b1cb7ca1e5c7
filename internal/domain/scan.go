package domain

import (
	"time"

	"github.com/google/uuid"
)

// Scan is an uploaded image or PDF of an answer sheet. attempt_id stays
// nil until the worker decodes the sheet QR and links it.
type Scan struct {
	ID            uuid.UUID
	AttemptID     *uuid.UUID
	AnswerSheetID *uuid.UUID
	FilePath      string
	OCRScore      *int
	OCRConfidence *float64
	OCRRawText    *string
	VerifiedBy    *uuid.UUID
	UploadedBy    uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewScan builds a scan record for an uploaded file.
func NewScan(id uuid.UUID, attemptID *uuid.UUID, filePath string, uploadedBy uuid.UUID) (Scan, error) {
	if filePath == "" {
		return Scan{}, E(KindValidation, "scan file path cannot be empty")
	}
	now := time.Now().UTC()
	return Scan{
		ID:         id,
		AttemptID:  attemptID,
		FilePath:   filePath,
		UploadedBy: uploadedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UpdateOCRResult records the worker's output. A nil score means the
// digits could not be read.
func (s *Scan) UpdateOCRResult(score *int, confidence *float64, rawText string) error {
	if score != nil && *score < 0 {
		return E(KindValidation, "OCR score cannot be negative")
	}
	if confidence != nil && (*confidence < 0 || *confidence > 1) {
		return E(KindValidation, "confidence must be between 0.0 and 1.0")
	}
	s.OCRScore = score
	s.OCRConfidence = confidence
	s.OCRRawText = &rawText
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Verify records a human check of the OCR result, optionally correcting
// the score.
func (s *Scan) Verify(verifiedBy uuid.UUID, correctedScore *int) error {
	if correctedScore != nil {
		if *correctedScore < 0 {
			return E(KindValidation, "corrected score cannot be negative")
		}
		s.OCRScore = correctedScore
	}
	s.VerifiedBy = &verifiedBy
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// IsProcessed reports whether OCR has run on this scan.
func (s *Scan) IsProcessed() bool { return s.OCRRawText != nil }

// IsVerified reports whether a human has checked the result.
func (s *Scan) IsVerified() bool { return s.VerifiedBy != nil }

// EventType is a recordable in-exam participant event.
type EventType string

const (
	EventStartWork EventType = "start_work"
	EventSubmit    EventType = "submit"
	EventExitRoom  EventType = "exit_room"
	EventEnterRoom EventType = "enter_room"
)

// ParseEventType validates a wire string.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventStartWork, EventSubmit, EventExitRoom, EventEnterRoom:
		return EventType(s), nil
	}
	return "", E(KindValidation, "unknown event type %q", s)
}

// ParticipantEvent is a timestamped in-exam event recorded by an
// invigilator against an attempt.
type ParticipantEvent struct {
	ID         uuid.UUID
	AttemptID  uuid.UUID
	EventType  EventType
	Timestamp  time.Time
	RecordedBy uuid.UUID
}

// NewParticipantEvent builds an event; a zero timestamp means "now".
func NewParticipantEvent(attemptID uuid.UUID, eventType EventType, recordedBy uuid.UUID, at time.Time) ParticipantEvent {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return ParticipantEvent{
		ID:         uuid.New(),
		AttemptID:  attemptID,
		EventType:  eventType,
		Timestamp:  at,
		RecordedBy: recordedBy,
	}
}
