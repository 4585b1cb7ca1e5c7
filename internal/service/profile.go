package service

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/store"
)

// ProfileService manages participant profiles, institutions and
// personal documents.
type ProfileService struct {
	deps Deps
}

func NewProfileService(deps Deps) *ProfileService {
	return &ProfileService{deps: deps}
}

// GetOwn returns the caller's profile.
func (s *ProfileService) GetOwn(ctx context.Context, sub auth.Subject) (domain.Participant, error) {
	if err := auth.Require(sub, domain.RoleParticipant); err != nil {
		return domain.Participant{}, err
	}
	return s.deps.Store.Participants().GetByUserID(ctx, sub.User.ID)
}

// Get returns any profile, staff-gated.
func (s *ProfileService) Get(ctx context.Context, sub auth.Subject, participantID uuid.UUID) (domain.Participant, error) {
	if err := auth.Require(sub, domain.RoleAdmitter, domain.RoleInvigilator, domain.RoleScanner); err != nil {
		return domain.Participant{}, err
	}
	return s.deps.Store.Participants().GetByID(ctx, participantID)
}

// UpdateInput is the profile edit payload. Nil fields keep their
// current value.
type UpdateInput struct {
	FullName      *string
	School        *string
	Grade         *int
	InstitutionID *uuid.UUID
	DateOfBirth   *time.Time
}

// UpdateOwn edits the caller's profile.
func (s *ProfileService) UpdateOwn(ctx context.Context, sub auth.Subject, in UpdateInput) (domain.Participant, error) {
	if err := auth.Require(sub, domain.RoleParticipant); err != nil {
		return domain.Participant{}, err
	}
	var p domain.Participant
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		p, err = st.Participants().GetByUserID(ctx, sub.User.ID)
		if err != nil {
			return err
		}
		name := p.FullName
		if in.FullName != nil {
			name = *in.FullName
		}
		school := p.School
		if in.School != nil {
			school = *in.School
		}
		grade := p.Grade
		if in.Grade != nil {
			grade = in.Grade
		}
		validated, err := domain.NewParticipant(p.UserID, name, school, grade)
		if err != nil {
			return err
		}
		p.FullName = validated.FullName
		p.School = validated.School
		p.Grade = validated.Grade
		if in.InstitutionID != nil {
			if _, err := st.Institutions().GetByID(ctx, *in.InstitutionID); err != nil {
				return err
			}
			p.InstitutionID = in.InstitutionID
		}
		if in.DateOfBirth != nil {
			p.DateOfBirth = in.DateOfBirth
		}
		p.UpdatedAt = time.Now().UTC()
		return st.Participants().Update(ctx, p)
	})
	return p, err
}

// CreateInstitution is admin-only; names are unique.
func (s *ProfileService) CreateInstitution(ctx context.Context, sub auth.Subject, name, shortName, city string) (domain.Institution, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return domain.Institution{}, err
	}
	inst, err := domain.NewInstitution(name, shortName, city)
	if err != nil {
		return domain.Institution{}, err
	}
	if err := s.deps.Store.Institutions().Create(ctx, inst); err != nil {
		return domain.Institution{}, err
	}
	return inst, nil
}

// SearchInstitutions is open to any authenticated user; query may be
// empty for a plain listing.
func (s *ProfileService) SearchInstitutions(ctx context.Context, sub auth.Subject, query string, page store.Page) ([]domain.Institution, error) {
	if err := auth.Require(sub, domain.RoleParticipant, domain.RoleAdmitter, domain.RoleScanner, domain.RoleInvigilator); err != nil {
		return nil, err
	}
	return s.deps.Store.Institutions().Search(ctx, query, page)
}

// UploadDocument stores a personal file and records it.
func (s *ProfileService) UploadDocument(ctx context.Context, sub auth.Subject, filename, mimeType string, data []byte) (domain.Document, error) {
	if err := auth.Require(sub, domain.RoleParticipant); err != nil {
		return domain.Document{}, err
	}
	if len(data) == 0 {
		return domain.Document{}, domain.E(domain.KindValidation, "empty upload")
	}
	filename = path.Base(filename)
	if filename == "." || filename == "/" || filename == "" {
		return domain.Document{}, domain.E(domain.KindValidation, "invalid filename")
	}
	participant, err := s.deps.Store.Participants().GetByUserID(ctx, sub.User.ID)
	if err != nil {
		return domain.Document{}, err
	}

	key := objstore.DocumentKey(participant.ID, filename)
	if err := s.deps.Objects.Put(ctx, s.deps.Cfg.Storage.SheetsBucket, key, objstore.Object{
		Data:        data,
		ContentType: mimeType,
	}); err != nil {
		return domain.Document{}, err
	}
	doc, err := domain.NewDocument(participant.ID, key, mimeType)
	if err != nil {
		return domain.Document{}, err
	}
	if err := s.deps.Store.Documents().Create(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// ListDocuments shows the caller's own documents.
func (s *ProfileService) ListDocuments(ctx context.Context, sub auth.Subject) ([]domain.Document, error) {
	if err := auth.Require(sub, domain.RoleParticipant); err != nil {
		return nil, err
	}
	participant, err := s.deps.Store.Participants().GetByUserID(ctx, sub.User.ID)
	if err != nil {
		return nil, err
	}
	return s.deps.Store.Documents().ListByParticipant(ctx, participant.ID)
}
