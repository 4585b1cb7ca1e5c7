package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
)

// AdminService holds the back-office operations that do not belong to
// a single aggregate: statistics, bulk pre-registration and the audit
// trail.
type AdminService struct {
	deps Deps
	reg  *RegistrationService
}

func NewAdminService(deps Deps, reg *RegistrationService) *AdminService {
	return &AdminService{deps: deps, reg: reg}
}

// CompetitionStatistics is the per-competition dashboard payload.
type CompetitionStatistics struct {
	CompetitionID  uuid.UUID                         `json:"competition_id"`
	Registrations  map[domain.RegistrationStatus]int `json:"registrations"`
	Attempts       map[domain.AttemptStatus]int      `json:"attempts"`
	UnverifiedScans int                              `json:"unverified_scans"`
}

// Statistics aggregates counts for one competition.
func (s *AdminService) Statistics(ctx context.Context, sub auth.Subject, competitionID uuid.UUID) (CompetitionStatistics, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return CompetitionStatistics{}, err
	}
	st := s.deps.Store
	if _, err := st.Competitions().GetByID(ctx, competitionID); err != nil {
		return CompetitionStatistics{}, err
	}

	stats := CompetitionStatistics{
		CompetitionID: competitionID,
		Registrations: make(map[domain.RegistrationStatus]int),
		Attempts:      make(map[domain.AttemptStatus]int),
	}
	for _, status := range []domain.RegistrationStatus{
		domain.RegistrationPending, domain.RegistrationAdmitted,
		domain.RegistrationCompleted, domain.RegistrationCancelled,
	} {
		n, err := st.Registrations().CountByCompetitionAndStatus(ctx, competitionID, status)
		if err != nil {
			return CompetitionStatistics{}, err
		}
		stats.Registrations[status] = n
	}
	for _, status := range []domain.AttemptStatus{
		domain.AttemptPrinted, domain.AttemptScanned, domain.AttemptScored,
		domain.AttemptPublished, domain.AttemptInvalidated,
	} {
		n, err := st.Attempts().CountByCompetitionAndStatus(ctx, competitionID, status)
		if err != nil {
			return CompetitionStatistics{}, err
		}
		stats.Attempts[status] = n
	}
	unverified, err := st.Scans().ListUnverified(ctx, store.Page{Limit: 500})
	if err != nil {
		return CompetitionStatistics{}, err
	}
	stats.UnverifiedScans = len(unverified)
	return stats, nil
}

// BulkPreRegisterResult reports per-participant outcomes plus one
// badge PDF covering the successful registrations.
type BulkPreRegisterResult struct {
	Registered []uuid.UUID
	Skipped    map[uuid.UUID]string
	BadgePDF   []byte
}

// BulkPreRegister registers many participants before the registration
// window opens and renders their entry-QR badges grouped by
// institution. Individual duplicates are skipped, not fatal.
func (s *AdminService) BulkPreRegister(ctx context.Context, sub auth.Subject, competitionID uuid.UUID, participantIDs []uuid.UUID) (BulkPreRegisterResult, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return BulkPreRegisterResult{}, err
	}
	if len(participantIDs) == 0 {
		return BulkPreRegisterResult{}, domain.E(domain.KindValidation, "no participants given")
	}

	out := BulkPreRegisterResult{Skipped: make(map[uuid.UUID]string)}
	var badges []sheet.Badge
	for _, pid := range participantIDs {
		res, err := s.reg.RegisterParticipant(ctx, sub, pid, competitionID, true)
		if err != nil {
			if domain.IsKind(err, domain.KindDuplicate) || domain.IsKind(err, domain.KindNotFound) {
				out.Skipped[pid] = err.Error()
				continue
			}
			return BulkPreRegisterResult{}, err
		}
		out.Registered = append(out.Registered, res.Registration.ID)

		participant, err := s.deps.Store.Participants().GetByID(ctx, pid)
		if err != nil {
			return BulkPreRegisterResult{}, err
		}
		instName := ""
		if participant.InstitutionID != nil {
			if inst, err := s.deps.Store.Institutions().GetByID(ctx, *participant.InstitutionID); err == nil {
				instName = inst.Name
			}
		}
		badges = append(badges, sheet.Badge{
			ParticipantName: participant.FullName,
			Institution:     instName,
			RawEntryToken:   res.RawToken,
		})
	}

	if len(badges) > 0 {
		pdf, err := s.deps.Renderer.RenderBadges(ctx, badges)
		if err != nil {
			return BulkPreRegisterResult{}, err
		}
		key := objstore.BadgeKey(competitionID)
		if err := s.deps.Objects.Put(ctx, s.deps.Cfg.Storage.SheetsBucket, key, objstore.Object{
			Data:        pdf,
			ContentType: "application/pdf",
		}); err != nil {
			return BulkPreRegisterResult{}, err
		}
		out.BadgePDF = pdf
	}
	logger.Printf("bulk pre-registered %d participants for competition %s (%d skipped)",
		len(out.Registered), competitionID, len(out.Skipped))
	return out, nil
}

// AuditLog lists the trail, optionally filtered by entity type.
func (s *AdminService) AuditLog(ctx context.Context, sub auth.Subject, entityType string, page store.Page) ([]domain.AuditLog, error) {
	if err := auth.Require(sub, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.deps.Store.Audit().List(ctx, entityType, page)
}
