package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/store"
)

// CompetitionService manages competitions, their rooms and the status
// lifecycle.
type CompetitionService struct {
	deps Deps
}

func NewCompetitionService(deps Deps) *CompetitionService {
	return &CompetitionService{deps: deps}
}

// CompetitionInput is the create/update payload.
type CompetitionInput struct {
	Name              string
	Date              time.Time
	RegistrationStart time.Time
	RegistrationEnd   time.Time
	VariantsCount     int
	MaxScore          int
}

// Create is admin-only; new competitions start in draft.
func (s *CompetitionService) Create(ctx context.Context, sub auth.Subject, in CompetitionInput) (domain.Competition, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.Competition{}, err
	}
	comp, err := domain.NewCompetition(in.Name, in.Date, in.RegistrationStart, in.RegistrationEnd,
		in.VariantsCount, in.MaxScore, sub.User.ID)
	if err != nil {
		return domain.Competition{}, err
	}
	err = s.deps.Store.WithTx(ctx, func(st store.Store) error {
		if err := st.Competitions().Create(ctx, comp); err != nil {
			return err
		}
		return audit(ctx, st, "competition", comp.ID, "created", &sub.User.ID, "", nil)
	})
	if err != nil {
		return domain.Competition{}, err
	}
	return comp, nil
}

// Get is public.
func (s *CompetitionService) Get(ctx context.Context, id uuid.UUID) (domain.Competition, error) {
	return s.deps.Store.Competitions().GetByID(ctx, id)
}

// List is public; status filters when non-empty.
func (s *CompetitionService) List(ctx context.Context, status string, page store.Page) ([]domain.Competition, error) {
	if status == "" {
		return s.deps.Store.Competitions().List(ctx, page)
	}
	parsed, err := domain.ParseCompetitionStatus(status)
	if err != nil {
		return nil, err
	}
	return s.deps.Store.Competitions().ListByStatus(ctx, parsed, page)
}

// Update edits the mutable fields; the status is changed only through
// the lifecycle transitions.
func (s *CompetitionService) Update(ctx context.Context, sub auth.Subject, id uuid.UUID, in CompetitionInput) (domain.Competition, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.Competition{}, err
	}
	var comp domain.Competition
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		comp, err = st.Competitions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		updated, err := domain.NewCompetition(in.Name, in.Date, in.RegistrationStart, in.RegistrationEnd,
			in.VariantsCount, in.MaxScore, comp.CreatedBy)
		if err != nil {
			return err
		}
		comp.Name = updated.Name
		comp.Date = updated.Date
		comp.RegistrationStart = updated.RegistrationStart
		comp.RegistrationEnd = updated.RegistrationEnd
		comp.VariantsCount = updated.VariantsCount
		comp.MaxScore = updated.MaxScore
		comp.UpdatedAt = time.Now().UTC()
		if err := st.Competitions().Update(ctx, comp); err != nil {
			return err
		}
		return audit(ctx, st, "competition", comp.ID, "updated", &sub.User.ID, "", nil)
	})
	return comp, err
}

// Delete removes a competition and, through the schema cascades, its
// dependent rows.
func (s *CompetitionService) Delete(ctx context.Context, sub auth.Subject, id uuid.UUID) error {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return err
	}
	return s.deps.Store.WithTx(ctx, func(st store.Store) error {
		if _, err := st.Competitions().GetByID(ctx, id); err != nil {
			return err
		}
		if err := st.Competitions().Delete(ctx, id); err != nil {
			return err
		}
		return audit(ctx, st, "competition", id, "deleted", &sub.User.ID, "", nil)
	})
}

// Transition applies one lifecycle step. Publishing also cascades
// every scored attempt of the competition to published in the same
// transaction, so results become queryable atomically.
func (s *CompetitionService) Transition(ctx context.Context, sub auth.Subject, id uuid.UUID, to domain.CompetitionStatus) (domain.Competition, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.Competition{}, err
	}
	var comp domain.Competition
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		comp, err = st.Competitions().GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch to {
		case domain.CompetitionRegistrationOpen:
			err = comp.OpenRegistration()
		case domain.CompetitionInProgress:
			err = comp.Start()
		case domain.CompetitionChecking:
			err = comp.StartChecking()
		case domain.CompetitionPublished:
			err = comp.PublishResults()
		default:
			err = domain.E(domain.KindValidation, "cannot transition to %q", to)
		}
		if err != nil {
			return err
		}
		if err := st.Competitions().Update(ctx, comp); err != nil {
			return err
		}
		if to == domain.CompetitionPublished {
			if err := s.publishScoredAttempts(ctx, st, comp.ID); err != nil {
				return err
			}
		}
		return audit(ctx, st, "competition", comp.ID, "status_"+string(to), &sub.User.ID, "", nil)
	})
	if err != nil {
		return domain.Competition{}, err
	}
	logger.Printf("competition %s moved to %s", comp.ID, comp.Status)
	return comp, nil
}

func (s *CompetitionService) publishScoredAttempts(ctx context.Context, st store.Store, competitionID uuid.UUID) error {
	attempts, err := st.Attempts().ListScoredByCompetition(ctx, competitionID)
	if err != nil {
		return err
	}
	for _, a := range attempts {
		if a.Status != domain.AttemptScored {
			continue
		}
		if err := a.Publish(); err != nil {
			return err
		}
		if err := st.Attempts().Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// CreateRoom adds a room to a competition.
func (s *CompetitionService) CreateRoom(ctx context.Context, sub auth.Subject, competitionID uuid.UUID, name string, capacity int) (domain.Room, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.Room{}, err
	}
	var room domain.Room
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		if _, err := st.Competitions().GetByID(ctx, competitionID); err != nil {
			return err
		}
		var err error
		room, err = domain.NewRoom(competitionID, name, capacity)
		if err != nil {
			return err
		}
		return st.Rooms().Create(ctx, room)
	})
	return room, err
}

// ListRooms is staff-readable.
func (s *CompetitionService) ListRooms(ctx context.Context, sub auth.Subject, competitionID uuid.UUID) ([]domain.Room, error) {
	if err := auth.Require(sub, domain.RoleAdmitter, domain.RoleInvigilator); err != nil {
		return nil, err
	}
	return s.deps.Store.Rooms().ListByCompetition(ctx, competitionID)
}

// UpdateRoom edits name and capacity.
func (s *CompetitionService) UpdateRoom(ctx context.Context, sub auth.Subject, roomID uuid.UUID, name string, capacity int) (domain.Room, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.Room{}, err
	}
	var room domain.Room
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		room, err = st.Rooms().GetByID(ctx, roomID)
		if err != nil {
			return err
		}
		updated, err := domain.NewRoom(room.CompetitionID, name, capacity)
		if err != nil {
			return err
		}
		room.Name = updated.Name
		room.Capacity = updated.Capacity
		return st.Rooms().Update(ctx, room)
	})
	return room, err
}

// DeleteRoom removes a room; seat assignments cascade.
func (s *CompetitionService) DeleteRoom(ctx context.Context, sub auth.Subject, roomID uuid.UUID) error {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return err
	}
	return s.deps.Store.Rooms().Delete(ctx, roomID)
}
