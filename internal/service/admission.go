package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/seating"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
)

// AdmissionService checks entry tokens at the door and turns a valid
// one into a printed answer sheet.
type AdmissionService struct {
	deps Deps
}

func NewAdmissionService(deps Deps) *AdmissionService {
	return &AdmissionService{deps: deps}
}

// VerifyResult previews an admission without mutating anything.
type VerifyResult struct {
	Registration    domain.Registration
	Participant     domain.Participant
	Competition     domain.Competition
	InstitutionName string
	HasDocuments    bool
	CanProceed      bool
	Reason          string
}

// Verify resolves a raw entry token to its registration. Checks run in
// order: unknown token, expired, already used. Never mutates state.
func (s *AdmissionService) Verify(ctx context.Context, sub auth.Subject, rawToken string) (VerifyResult, error) {
	if err := auth.Require(sub, domain.RoleAdmitter); err != nil {
		return VerifyResult{}, err
	}
	st := s.deps.Store

	entry, err := s.lookupToken(ctx, st, rawToken)
	if err != nil {
		return VerifyResult{}, err
	}

	reg, err := st.Registrations().GetByID(ctx, entry.RegistrationID)
	if err != nil {
		return VerifyResult{}, err
	}
	participant, err := st.Participants().GetByID(ctx, reg.ParticipantID)
	if err != nil {
		return VerifyResult{}, err
	}
	comp, err := st.Competitions().GetByID(ctx, reg.CompetitionID)
	if err != nil {
		return VerifyResult{}, err
	}

	res := VerifyResult{
		Registration: reg,
		Participant:  participant,
		Competition:  comp,
		CanProceed:   true,
	}
	if participant.InstitutionID != nil {
		inst, err := st.Institutions().GetByID(ctx, *participant.InstitutionID)
		if err == nil {
			res.InstitutionName = inst.Name
		} else if !domain.IsKind(err, domain.KindNotFound) {
			return VerifyResult{}, err
		}
	}
	docs, err := st.Documents().CountByParticipant(ctx, participant.ID)
	if err != nil {
		return VerifyResult{}, err
	}
	res.HasDocuments = docs > 0

	if !comp.IsInProgress() {
		res.CanProceed = false
		res.Reason = fmt.Sprintf("competition is %s, not in progress", comp.Status)
	}
	return res, nil
}

// ApprovalResult is handed back to the admitter's terminal for
// printing.
type ApprovalResult struct {
	AttemptID     uuid.UUID
	VariantNumber int
	// DownloadPath is the server-relative path of the rendered PDF.
	DownloadPath string
	// RawSheetToken is already inside the rendered QR; returned for
	// display and reprints.
	RawSheetToken string
	RoomName      string
	SeatNumber    *int
}

// Approve admits the registration: burns the entry token, seats the
// participant, issues the sheet token, renders and stores the answer
// sheet PDF and completes the registration, all in one transaction.
func (s *AdmissionService) Approve(ctx context.Context, sub auth.Subject, registrationID uuid.UUID, rawToken, ip string) (ApprovalResult, error) {
	if err := auth.Require(sub, domain.RoleAdmitter); err != nil {
		return ApprovalResult{}, err
	}

	var out ApprovalResult
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		entry, err := s.lookupToken(ctx, st, rawToken)
		if err != nil {
			return err
		}
		if entry.RegistrationID != registrationID {
			return domain.E(domain.KindValidation, "token does not belong to this registration")
		}
		if err := entry.Use(); err != nil {
			return err
		}
		if err := st.EntryTokens().Update(ctx, entry); err != nil {
			return err
		}

		reg, err := st.Registrations().GetByID(ctx, registrationID)
		if err != nil {
			return err
		}
		if err := reg.Admit(); err != nil {
			return err
		}
		if err := st.Registrations().Update(ctx, reg); err != nil {
			return err
		}

		comp, err := st.Competitions().GetByID(ctx, reg.CompetitionID)
		if err != nil {
			return err
		}
		participant, err := st.Participants().GetByID(ctx, reg.ParticipantID)
		if err != nil {
			return err
		}

		variant := 0
		var roomName string
		var seatNumber *int
		assignment, err := s.deps.Seating.Assign(ctx, st, comp, reg, participant)
		switch {
		case err == nil:
			variant = assignment.VariantNumber
			seat := assignment.SeatNumber
			seatNumber = &seat
			room, err := st.Rooms().GetByID(ctx, assignment.RoomID)
			if err != nil {
				return err
			}
			roomName = room.Name
		case errors.Is(err, seating.ErrNoRooms):
			variant = rand.Intn(comp.VariantsCount) + 1
		default:
			return err
		}

		sheetTok, err := s.deps.Tokens.Generate(s.deps.Cfg.Tokens.QRTokenSizeBytes)
		if err != nil {
			return err
		}
		attempt, err := domain.NewAttempt(reg.ID, variant, sheetTok.Hash)
		if err != nil {
			return err
		}

		pdf, err := s.deps.Renderer.RenderAnswerSheet(ctx, sheet.SheetData{
			CompetitionName:   comp.Name,
			ParticipantName:   participant.FullName,
			School:            participant.School,
			VariantNumber:     variant,
			RoomName:          roomName,
			SeatNumber:        valOrZero(seatNumber),
			RawSheetToken:     sheetTok.Raw,
			QRErrorCorrection: s.deps.Cfg.Tokens.QRErrorCorrection,
		})
		if err != nil {
			return err
		}
		key := objstore.SheetKey(comp.ID, attempt.ID)
		// An orphan blob from a failed transaction is harmless; GC
		// sweeps it out-of-band.
		if err := s.deps.Objects.Put(ctx, s.deps.Cfg.Storage.SheetsBucket, key, objstore.Object{
			Data:        pdf,
			ContentType: "application/pdf",
		}); err != nil {
			return err
		}
		attempt.PDFFilePath = key
		if err := st.Attempts().Create(ctx, attempt); err != nil {
			return err
		}

		primary, err := domain.NewAnswerSheet(attempt.ID, sheetTok.Hash, domain.SheetPrimary)
		if err != nil {
			return err
		}
		primary.PDFFilePath = key
		if err := st.AnswerSheets().Create(ctx, primary); err != nil {
			return err
		}

		if err := reg.Complete(); err != nil {
			return err
		}
		if err := st.Registrations().Update(ctx, reg); err != nil {
			return err
		}

		details := map[string]interface{}{
			"variant":    variant,
			"attempt_id": attempt.ID.String(),
		}
		if roomName != "" {
			details["room"] = roomName
			details["seat"] = *seatNumber
		}
		if err := audit(ctx, st, "registration", reg.ID, "admitted", &sub.User.ID, ip, details); err != nil {
			return err
		}

		out = ApprovalResult{
			AttemptID:     attempt.ID,
			VariantNumber: variant,
			DownloadPath:  fmt.Sprintf("admission/sheets/%s/download", attempt.ID),
			RawSheetToken: sheetTok.Raw,
			RoomName:      roomName,
			SeatNumber:    seatNumber,
		}
		return nil
	})
	if err != nil {
		return ApprovalResult{}, err
	}
	s.deps.Metrics.AdmissionApproved()
	logger.Printf("admitted registration %s as attempt %s", registrationID, out.AttemptID)
	return out, nil
}

// DownloadSheet fetches the rendered PDF of an attempt for printing.
func (s *AdmissionService) DownloadSheet(ctx context.Context, sub auth.Subject, attemptID uuid.UUID) (objstore.Object, error) {
	if err := auth.Require(sub, domain.RoleAdmitter, domain.RoleInvigilator); err != nil {
		return objstore.Object{}, err
	}
	attempt, err := s.deps.Store.Attempts().GetByID(ctx, attemptID)
	if err != nil {
		return objstore.Object{}, err
	}
	if attempt.PDFFilePath == "" {
		return objstore.Object{}, domain.E(domain.KindNotFound, "attempt has no rendered sheet")
	}
	return s.deps.Objects.Get(ctx, s.deps.Cfg.Storage.SheetsBucket, attempt.PDFFilePath)
}

// lookupToken resolves a raw entry token, failing in the fixed order
// unknown, expired, used.
func (s *AdmissionService) lookupToken(ctx context.Context, st store.Store, rawToken string) (domain.EntryToken, error) {
	if rawToken == "" {
		return domain.EntryToken{}, domain.E(domain.KindValidation, "token cannot be empty")
	}
	entry, err := st.EntryTokens().GetByTokenHash(ctx, s.deps.Tokens.Hash(rawToken))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.EntryToken{}, domain.E(domain.KindNotFound, "entry token not found")
		}
		return domain.EntryToken{}, err
	}
	if entry.IsExpired() {
		return domain.EntryToken{}, domain.E(domain.KindInvalidState, "entry token has expired")
	}
	if entry.IsUsed() {
		return domain.EntryToken{}, domain.E(domain.KindInvalidState, "entry token has already been used")
	}
	return entry, nil
}

func valOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
