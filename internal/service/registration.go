package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/store"
)

// RegistrationService signs participants up for competitions and
// manages their entry tokens.
type RegistrationService struct {
	deps Deps
}

func NewRegistrationService(deps Deps) *RegistrationService {
	return &RegistrationService{deps: deps}
}

// RegistrationResult carries the raw entry token exactly once at
// creation; later reads go through EntryToken.
type RegistrationResult struct {
	Registration domain.Registration
	RawToken     string
	ExpiresAt    time.Time
}

// Register creates a pending registration plus its entry token for the
// calling participant.
func (s *RegistrationService) Register(ctx context.Context, sub auth.Subject, competitionID uuid.UUID) (RegistrationResult, error) {
	if err := auth.Require(sub, domain.RoleParticipant); err != nil {
		return RegistrationResult{}, err
	}
	participant, err := s.deps.Store.Participants().GetByUserID(ctx, sub.User.ID)
	if err != nil {
		return RegistrationResult{}, err
	}
	return s.register(ctx, participant.ID, competitionID, false)
}

// RegisterParticipant is the admin path used by bulk pre-registration:
// it may bypass the registration-window check.
func (s *RegistrationService) RegisterParticipant(ctx context.Context, sub auth.Subject, participantID, competitionID uuid.UUID, skipStatusCheck bool) (RegistrationResult, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return RegistrationResult{}, err
	}
	return s.register(ctx, participantID, competitionID, skipStatusCheck)
}

func (s *RegistrationService) register(ctx context.Context, participantID, competitionID uuid.UUID, skipStatusCheck bool) (RegistrationResult, error) {
	var out RegistrationResult
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		comp, err := st.Competitions().GetByID(ctx, competitionID)
		if err != nil {
			return err
		}
		if !skipStatusCheck && !comp.IsRegistrationOpen() {
			return domain.E(domain.KindInvalidState, "registration for competition %q is closed", comp.Name)
		}
		if _, err := st.Registrations().GetByParticipantAndCompetition(ctx, participantID, competitionID); err == nil {
			return domain.E(domain.KindDuplicate, "participant is already registered for this competition")
		} else if !domain.IsKind(err, domain.KindNotFound) {
			return err
		}

		reg := domain.NewRegistration(participantID, competitionID)
		if err := st.Registrations().Create(ctx, reg); err != nil {
			return err
		}

		tok, err := s.deps.Tokens.Generate(s.deps.Cfg.Tokens.QRTokenSizeBytes)
		if err != nil {
			return err
		}
		ttl := time.Duration(s.deps.Cfg.Tokens.EntryTokenExpireHours) * time.Hour
		entry, err := domain.NewEntryToken(reg.ID, tok.Hash, tok.Raw, ttl)
		if err != nil {
			return err
		}
		if err := st.EntryTokens().Create(ctx, entry); err != nil {
			return err
		}
		out = RegistrationResult{Registration: reg, RawToken: tok.Raw, ExpiresAt: entry.ExpiresAt}
		return nil
	})
	if err != nil {
		return RegistrationResult{}, err
	}
	s.deps.Metrics.RegistrationCreated()
	return out, nil
}

// RefreshToken regenerates an expired, unused entry token in place and
// extends its expiry. The row identity is preserved.
func (s *RegistrationService) RefreshToken(ctx context.Context, sub auth.Subject, registrationID uuid.UUID) (RegistrationResult, error) {
	var out RegistrationResult
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		reg, err := st.Registrations().GetByID(ctx, registrationID)
		if err != nil {
			return err
		}
		if err := s.requireRegistrationOwner(ctx, st, sub, reg); err != nil {
			return err
		}
		entry, err := st.EntryTokens().GetByRegistration(ctx, reg.ID)
		if err != nil {
			return err
		}
		if !entry.IsExpired() {
			return domain.E(domain.KindInvalidState, "entry token is still valid")
		}
		tok, err := s.deps.Tokens.Generate(s.deps.Cfg.Tokens.QRTokenSizeBytes)
		if err != nil {
			return err
		}
		ttl := time.Duration(s.deps.Cfg.Tokens.EntryTokenExpireHours) * time.Hour
		if err := entry.Refresh(tok.Hash, tok.Raw, ttl); err != nil {
			return err
		}
		if err := st.EntryTokens().Update(ctx, entry); err != nil {
			return err
		}
		out = RegistrationResult{Registration: reg, RawToken: tok.Raw, ExpiresAt: entry.ExpiresAt}
		return nil
	})
	if err != nil {
		return RegistrationResult{}, err
	}
	return out, nil
}

// EntryToken re-reads the raw entry token for QR redisplay. Only the
// owning participant (or an admin) may read it.
func (s *RegistrationService) EntryToken(ctx context.Context, sub auth.Subject, registrationID uuid.UUID) (domain.EntryToken, error) {
	reg, err := s.deps.Store.Registrations().GetByID(ctx, registrationID)
	if err != nil {
		return domain.EntryToken{}, err
	}
	if err := s.requireRegistrationOwner(ctx, s.deps.Store, sub, reg); err != nil {
		return domain.EntryToken{}, err
	}
	return s.deps.Store.EntryTokens().GetByRegistration(ctx, registrationID)
}

// Get returns one registration, ownership-gated.
func (s *RegistrationService) Get(ctx context.Context, sub auth.Subject, registrationID uuid.UUID) (domain.Registration, error) {
	reg, err := s.deps.Store.Registrations().GetByID(ctx, registrationID)
	if err != nil {
		return domain.Registration{}, err
	}
	if err := s.requireRegistrationOwner(ctx, s.deps.Store, sub, reg); err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// ListOwn lists the calling participant's registrations.
func (s *RegistrationService) ListOwn(ctx context.Context, sub auth.Subject) ([]domain.Registration, error) {
	if err := auth.Require(sub, domain.RoleParticipant); err != nil {
		return nil, err
	}
	participant, err := s.deps.Store.Participants().GetByUserID(ctx, sub.User.ID)
	if err != nil {
		return nil, err
	}
	return s.deps.Store.Registrations().ListByParticipant(ctx, participant.ID)
}

// ListByCompetition is the staff view.
func (s *RegistrationService) ListByCompetition(ctx context.Context, sub auth.Subject, competitionID uuid.UUID, page store.Page) ([]domain.Registration, error) {
	if err := auth.Require(sub, domain.RoleAdmitter, domain.RoleInvigilator); err != nil {
		return nil, err
	}
	return s.deps.Store.Registrations().ListByCompetition(ctx, competitionID, page)
}

// Cancel cancels a registration, ownership-gated.
func (s *RegistrationService) Cancel(ctx context.Context, sub auth.Subject, registrationID uuid.UUID) (domain.Registration, error) {
	var reg domain.Registration
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		reg, err = st.Registrations().GetByID(ctx, registrationID)
		if err != nil {
			return err
		}
		if err := s.requireRegistrationOwner(ctx, st, sub, reg); err != nil {
			return err
		}
		if err := reg.Cancel(); err != nil {
			return err
		}
		if err := st.Registrations().Update(ctx, reg); err != nil {
			return err
		}
		return audit(ctx, st, "registration", reg.ID, "cancelled", &sub.User.ID, "", nil)
	})
	return reg, err
}

func (s *RegistrationService) requireRegistrationOwner(ctx context.Context, st store.Store, sub auth.Subject, reg domain.Registration) error {
	participant, err := st.Participants().GetByID(ctx, reg.ParticipantID)
	if err != nil {
		return err
	}
	return auth.RequireOwnership(sub, participant)
}
