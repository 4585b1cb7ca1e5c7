package domain

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the registration lifecycle phase.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationAdmitted  RegistrationStatus = "admitted"
	RegistrationCompleted RegistrationStatus = "completed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Registration links a participant to a competition.
// (participant_id, competition_id) is unique.
type Registration struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	CompetitionID uuid.UUID
	Status        RegistrationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRegistration builds a pending registration.
func NewRegistration(participantID, competitionID uuid.UUID) Registration {
	now := time.Now().UTC()
	return Registration{
		ID:            uuid.New(),
		ParticipantID: participantID,
		CompetitionID: competitionID,
		Status:        RegistrationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Admit marks the participant admitted (entry token verified).
func (r *Registration) Admit() error {
	if r.Status != RegistrationPending {
		return E(KindInvalidState, "can only admit from pending status, current is %s", r.Status)
	}
	r.Status = RegistrationAdmitted
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the registration completed (answer sheet issued).
func (r *Registration) Complete() error {
	if r.Status != RegistrationAdmitted {
		return E(KindInvalidState, "can only complete from admitted status, current is %s", r.Status)
	}
	r.Status = RegistrationCompleted
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel cancels the registration; legal from any non-cancelled status.
func (r *Registration) Cancel() error {
	if r.Status == RegistrationCancelled {
		return E(KindInvalidState, "registration is already cancelled")
	}
	r.Status = RegistrationCancelled
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// IsActive reports whether the registration is not cancelled.
func (r *Registration) IsActive() bool { return r.Status != RegistrationCancelled }
