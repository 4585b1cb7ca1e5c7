package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the answer-sheet lifecycle phase.
type AttemptStatus string

const (
	AttemptPrinted     AttemptStatus = "printed"
	AttemptScanned     AttemptStatus = "scanned"
	AttemptScored      AttemptStatus = "scored"
	AttemptPublished   AttemptStatus = "published"
	AttemptInvalidated AttemptStatus = "invalidated"
)

// CanApplyScore reports whether a score may be applied in this status.
func (s AttemptStatus) CanApplyScore() bool {
	return s == AttemptPrinted || s == AttemptScanned || s == AttemptScored
}

// HasScore reports whether the status implies a score is present.
func (s AttemptStatus) HasScore() bool {
	return s == AttemptScored || s == AttemptPublished
}

// Attempt is one participant's examination run: it owns the answer sheet
// and the score.
type Attempt struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	VariantNumber  int
	SheetTokenHash string
	Status         AttemptStatus
	ScoreTotal     *int
	Confidence     *float64 // nil when manually scored
	PDFFilePath    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAttempt builds a printed attempt for an admitted registration.
func NewAttempt(registrationID uuid.UUID, variant int, sheetTokenHash string) (Attempt, error) {
	if variant < 1 {
		return Attempt{}, E(KindValidation, "variant number must be positive")
	}
	if sheetTokenHash == "" {
		return Attempt{}, E(KindValidation, "sheet token hash cannot be empty")
	}
	now := time.Now().UTC()
	return Attempt{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		VariantNumber:  variant,
		SheetTokenHash: sheetTokenHash,
		Status:         AttemptPrinted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkScanned records the first uploaded scan: printed -> scanned.
func (a *Attempt) MarkScanned() error {
	if a.Status != AttemptPrinted {
		return E(KindInvalidState, "can only scan printed attempts, current is %s", a.Status)
	}
	a.Status = AttemptScanned
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyScore sets the score. Confidence is nil for manual entry and the
// OCR certainty otherwise. Legal from printed, scanned and scored (a
// re-score overwrites).
func (a *Attempt) ApplyScore(score int, confidence *float64) error {
	if !a.Status.CanApplyScore() {
		return E(KindInvalidState, "cannot apply score in status %s", a.Status)
	}
	if score < 0 {
		return E(KindValidation, "score cannot be negative")
	}
	if confidence != nil && (*confidence < 0 || *confidence > 1) {
		return E(KindValidation, "confidence must be between 0.0 and 1.0")
	}
	a.ScoreTotal = &score
	a.Confidence = confidence
	a.Status = AttemptScored
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Publish makes the attempt visible in results. Requires a score.
func (a *Attempt) Publish() error {
	if !a.Status.HasScore() {
		return E(KindInvalidState, "cannot publish attempt without score")
	}
	a.Status = AttemptPublished
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Invalidate voids the attempt (cheating, technical issues). Legal from
// any status.
func (a *Attempt) Invalidate() {
	a.Status = AttemptInvalidated
	a.UpdatedAt = time.Now().UTC()
}

// HasScore reports whether a score has been applied.
func (a *Attempt) HasScore() bool { return a.ScoreTotal != nil }

// SheetKind distinguishes the admission-issued sheet from extras handed
// out by invigilators.
type SheetKind string

const (
	SheetPrimary SheetKind = "primary"
	SheetExtra   SheetKind = "extra"
)

// AnswerSheet is a printable sheet tied to an attempt. Its token hash is
// unique so scans can be linked back.
type AnswerSheet struct {
	ID             uuid.UUID
	AttemptID      uuid.UUID
	SheetTokenHash string
	Kind           SheetKind
	PDFFilePath    string
	CreatedAt      time.Time
}

// NewAnswerSheet builds a sheet record.
func NewAnswerSheet(attemptID uuid.UUID, sheetTokenHash string, kind SheetKind) (AnswerSheet, error) {
	if sheetTokenHash == "" {
		return AnswerSheet{}, E(KindValidation, "sheet token hash cannot be empty")
	}
	return AnswerSheet{
		ID:             uuid.New(),
		AttemptID:      attemptID,
		SheetTokenHash: sheetTokenHash,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// SeatAssignment places a registration at a concrete seat with a variant.
// (room_id, seat_number) is unique and backstops concurrent assignment.
type SeatAssignment struct {
	ID             uuid.UUID
	RegistrationID uuid.UUID
	RoomID         uuid.UUID
	SeatNumber     int
	VariantNumber  int
	CreatedAt      time.Time
}

// NewSeatAssignment validates and builds an assignment.
func NewSeatAssignment(registrationID, roomID uuid.UUID, seat, variant int) (SeatAssignment, error) {
	if seat < 1 {
		return SeatAssignment{}, E(KindValidation, "seat number must be positive")
	}
	if variant < 1 {
		return SeatAssignment{}, E(KindValidation, "variant number must be positive")
	}
	return SeatAssignment{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		RoomID:         roomID,
		SeatNumber:     seat,
		VariantNumber:  variant,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
