package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
)

// InvigilatorService records in-exam events and issues extra sheets.
type InvigilatorService struct {
	deps Deps
}

func NewInvigilatorService(deps Deps) *InvigilatorService {
	return &InvigilatorService{deps: deps}
}

// ResolveAttempt finds the attempt behind a scanned sheet QR, the way
// invigilators identify a participant mid-exam.
func (s *InvigilatorService) ResolveAttempt(ctx context.Context, sub auth.Subject, rawSheetToken string) (domain.Attempt, error) {
	if err := auth.Require(sub, domain.RoleInvigilator); err != nil {
		return domain.Attempt{}, err
	}
	attempt, err := s.deps.Store.Attempts().GetBySheetTokenHash(ctx, s.deps.Tokens.Hash(rawSheetToken))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Attempt{}, domain.E(domain.KindNotFound, "no attempt matches this sheet")
		}
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// RecordEvent appends a participant event to an attempt's timeline.
func (s *InvigilatorService) RecordEvent(ctx context.Context, sub auth.Subject, attemptID uuid.UUID, eventType string, at time.Time) (domain.ParticipantEvent, error) {
	if err := auth.Require(sub, domain.RoleInvigilator); err != nil {
		return domain.ParticipantEvent{}, err
	}
	parsed, err := domain.ParseEventType(eventType)
	if err != nil {
		return domain.ParticipantEvent{}, err
	}
	var event domain.ParticipantEvent
	err = s.deps.Store.WithTx(ctx, func(st store.Store) error {
		if _, err := st.Attempts().GetByID(ctx, attemptID); err != nil {
			return err
		}
		event = domain.NewParticipantEvent(attemptID, parsed, sub.User.ID, at)
		return st.Events().Create(ctx, event)
	})
	return event, err
}

// ListEvents returns an attempt's timeline.
func (s *InvigilatorService) ListEvents(ctx context.Context, sub auth.Subject, attemptID uuid.UUID) ([]domain.ParticipantEvent, error) {
	if err := auth.Require(sub, domain.RoleInvigilator, domain.RoleScanner); err != nil {
		return nil, err
	}
	return s.deps.Store.Events().ListByAttempt(ctx, attemptID)
}

// ExtraSheetResult carries the printable extra sheet.
type ExtraSheetResult struct {
	Sheet         domain.AnswerSheet
	RawSheetToken string
	PDF           []byte
}

// IssueExtraSheet mints a fresh sheet token, renders an extra sheet
// and records it against the attempt.
func (s *InvigilatorService) IssueExtraSheet(ctx context.Context, sub auth.Subject, attemptID uuid.UUID) (ExtraSheetResult, error) {
	if err := auth.Require(sub, domain.RoleInvigilator); err != nil {
		return ExtraSheetResult{}, err
	}
	var out ExtraSheetResult
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		attempt, err := st.Attempts().GetByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != domain.AttemptPrinted && attempt.Status != domain.AttemptScanned {
			return domain.E(domain.KindInvalidState, "cannot issue extra sheets for a %s attempt", attempt.Status)
		}
		reg, err := st.Registrations().GetByID(ctx, attempt.RegistrationID)
		if err != nil {
			return err
		}
		comp, err := st.Competitions().GetByID(ctx, reg.CompetitionID)
		if err != nil {
			return err
		}
		existing, err := st.AnswerSheets().ListByAttempt(ctx, attemptID)
		if err != nil {
			return err
		}

		tok, err := s.deps.Tokens.Generate(s.deps.Cfg.Tokens.QRTokenSizeBytes)
		if err != nil {
			return err
		}
		extra, err := domain.NewAnswerSheet(attemptID, tok.Hash, domain.SheetExtra)
		if err != nil {
			return err
		}

		pdf, err := s.deps.Renderer.RenderExtraSheet(ctx, sheet.ExtraSheetData{
			CompetitionName:   comp.Name,
			AttemptID:         attemptID,
			SheetNumber:       len(existing) + 1,
			RawSheetToken:     tok.Raw,
			QRErrorCorrection: s.deps.Cfg.Tokens.QRErrorCorrection,
		})
		if err != nil {
			return err
		}
		key := objstore.ExtraSheetKey(attemptID, extra.ID)
		if err := s.deps.Objects.Put(ctx, s.deps.Cfg.Storage.SheetsBucket, key, objstore.Object{
			Data:        pdf,
			ContentType: "application/pdf",
		}); err != nil {
			return err
		}
		extra.PDFFilePath = key
		if err := st.AnswerSheets().Create(ctx, extra); err != nil {
			return err
		}
		if err := audit(ctx, st, "attempt", attemptID, "extra_sheet_issued", &sub.User.ID, "", map[string]interface{}{
			"sheet_id": extra.ID.String(),
		}); err != nil {
			return err
		}
		out = ExtraSheetResult{Sheet: extra, RawSheetToken: tok.Raw, PDF: pdf}
		return nil
	})
	return out, err
}

// Invalidate marks an attempt void (rule violation, spoiled sheet).
func (s *InvigilatorService) Invalidate(ctx context.Context, sub auth.Subject, attemptID uuid.UUID, reason string) (domain.Attempt, error) {
	if err := auth.Require(sub, domain.RoleInvigilator); err != nil {
		return domain.Attempt{}, err
	}
	var attempt domain.Attempt
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		attempt, err = st.Attempts().GetByID(ctx, attemptID)
		if err != nil {
			return err
		}
		attempt.Invalidate()
		if err := st.Attempts().Update(ctx, attempt); err != nil {
			return err
		}
		return audit(ctx, st, "attempt", attemptID, "invalidated", &sub.User.ID, "", map[string]interface{}{
			"reason": reason,
		})
	})
	return attempt, err
}
