// Package store defines the repository interfaces the workflows compose
// and ships two implementations: Postgres (lib/pq) for production and an
// in-memory map store for tests.
//
// All repository calls inside one workflow must share a transaction:
// Store.WithTx hands the workflow a transactional view and commits or
// rolls back as a unit.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
)

// Store bundles every aggregate repository behind one handle.
type Store interface {
	Users() UserRepo
	Participants() ParticipantRepo
	Institutions() InstitutionRepo
	Competitions() CompetitionRepo
	Rooms() RoomRepo
	Registrations() RegistrationRepo
	EntryTokens() EntryTokenRepo
	SeatAssignments() SeatAssignmentRepo
	Attempts() AttemptRepo
	AnswerSheets() AnswerSheetRepo
	Scans() ScanRepo
	Events() ParticipantEventRepo
	Documents() DocumentRepo
	Audit() AuditLogRepo

	// WithTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Page bounds a listing.
type Page struct {
	Skip  int
	Limit int
}

// Clamp applies the default and maximum page size.
func (p Page) Clamp() Page {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

type UserRepo interface {
	Create(ctx context.Context, u domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, u domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page Page) ([]domain.User, error)
}

type ParticipantRepo interface {
	Create(ctx context.Context, p domain.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Participant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Participant, error)
	Update(ctx context.Context, p domain.Participant) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page Page) ([]domain.Participant, error)
}

type InstitutionRepo interface {
	Create(ctx context.Context, i domain.Institution) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Institution, error)
	GetByName(ctx context.Context, name string) (domain.Institution, error)
	Search(ctx context.Context, query string, page Page) ([]domain.Institution, error)
	List(ctx context.Context, page Page) ([]domain.Institution, error)
}

type CompetitionRepo interface {
	Create(ctx context.Context, c domain.Competition) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Competition, error)
	Update(ctx context.Context, c domain.Competition) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page Page) ([]domain.Competition, error)
	ListByStatus(ctx context.Context, status domain.CompetitionStatus, page Page) ([]domain.Competition, error)
}

type RoomRepo interface {
	Create(ctx context.Context, r domain.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Room, error)
	Update(ctx context.Context, r domain.Room) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCompetition(ctx context.Context, competitionID uuid.UUID) ([]domain.Room, error)
}

type RegistrationRepo interface {
	Create(ctx context.Context, r domain.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Registration, error)
	GetByParticipantAndCompetition(ctx context.Context, participantID, competitionID uuid.UUID) (domain.Registration, error)
	Update(ctx context.Context, r domain.Registration) error
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.Registration, error)
	ListByCompetition(ctx context.Context, competitionID uuid.UUID, page Page) ([]domain.Registration, error)
	CountByCompetitionAndStatus(ctx context.Context, competitionID uuid.UUID, status domain.RegistrationStatus) (int, error)
}

type EntryTokenRepo interface {
	Create(ctx context.Context, t domain.EntryToken) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.EntryToken, error)
	GetByTokenHash(ctx context.Context, hash string) (domain.EntryToken, error)
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.EntryToken, error)
	Update(ctx context.Context, t domain.EntryToken) error
}

type SeatAssignmentRepo interface {
	Create(ctx context.Context, a domain.SeatAssignment) error
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.SeatAssignment, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]domain.SeatAssignment, error)
	CountByRoom(ctx context.Context, roomID uuid.UUID) (int, error)
	// CountByRoomAndInstitution counts assignments in the room whose
	// registrant belongs to the given institution.
	CountByRoomAndInstitution(ctx context.Context, roomID, institutionID uuid.UUID) (int, error)
}

type AttemptRepo interface {
	Create(ctx context.Context, a domain.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Attempt, error)
	GetBySheetTokenHash(ctx context.Context, hash string) (domain.Attempt, error)
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (domain.Attempt, error)
	Update(ctx context.Context, a domain.Attempt) error
	// ListScoredByCompetition returns attempts of the competition whose
	// status is scored or published and whose score is present, ordered
	// by score descending.
	ListScoredByCompetition(ctx context.Context, competitionID uuid.UUID) ([]domain.Attempt, error)
	CountByCompetitionAndStatus(ctx context.Context, competitionID uuid.UUID, status domain.AttemptStatus) (int, error)
}

type AnswerSheetRepo interface {
	Create(ctx context.Context, s domain.AnswerSheet) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.AnswerSheet, error)
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]domain.AnswerSheet, error)
}

type ScanRepo interface {
	Create(ctx context.Context, s domain.Scan) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Scan, error)
	Update(ctx context.Context, s domain.Scan) error
	List(ctx context.Context, page Page) ([]domain.Scan, error)
	ListUnverified(ctx context.Context, page Page) ([]domain.Scan, error)
}

type ParticipantEventRepo interface {
	Create(ctx context.Context, e domain.ParticipantEvent) error
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]domain.ParticipantEvent, error)
}

type DocumentRepo interface {
	Create(ctx context.Context, d domain.Document) error
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.Document, error)
	CountByParticipant(ctx context.Context, participantID uuid.UUID) (int, error)
}

// AuditLogRepo is append-only: records are never updated or deleted.
type AuditLogRepo interface {
	Append(ctx context.Context, a domain.AuditLog) error
	List(ctx context.Context, entityType string, page Page) ([]domain.AuditLog, error)
}
