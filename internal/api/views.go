package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/store"
)

// Wire views. Entities never serialize directly; each view pins the
// JSON shape clients depend on.

type userView struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
}

func toUserView(u domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: string(u.Role), IsActive: u.IsActive}
}

type participantView struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	FullName      string     `json:"full_name"`
	School        string     `json:"school"`
	Grade         *int       `json:"grade,omitempty"`
	InstitutionID *uuid.UUID `json:"institution_id,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
}

func toParticipantView(p domain.Participant) participantView {
	return participantView{
		ID: p.ID, UserID: p.UserID, FullName: p.FullName, School: p.School,
		Grade: p.Grade, InstitutionID: p.InstitutionID, DateOfBirth: p.DateOfBirth,
	}
}

type competitionView struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Date              time.Time `json:"date"`
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	VariantsCount     int       `json:"variants_count"`
	MaxScore          int       `json:"max_score"`
	Status            string    `json:"status"`
}

func toCompetitionView(c domain.Competition) competitionView {
	return competitionView{
		ID: c.ID, Name: c.Name, Date: c.Date,
		RegistrationStart: c.RegistrationStart, RegistrationEnd: c.RegistrationEnd,
		VariantsCount: c.VariantsCount, MaxScore: c.MaxScore, Status: string(c.Status),
	}
}

type registrationView struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	CompetitionID uuid.UUID `json:"competition_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toRegistrationView(r domain.Registration) registrationView {
	return registrationView{
		ID: r.ID, ParticipantID: r.ParticipantID, CompetitionID: r.CompetitionID,
		Status: string(r.Status), CreatedAt: r.CreatedAt,
	}
}

type scanView struct {
	ID            uuid.UUID  `json:"id"`
	AttemptID     *uuid.UUID `json:"attempt_id,omitempty"`
	FilePath      string     `json:"file_path"`
	OCRScore      *int       `json:"ocr_score,omitempty"`
	OCRConfidence *float64   `json:"ocr_confidence,omitempty"`
	OCRRawText    *string    `json:"ocr_raw_text,omitempty"`
	Verified      bool       `json:"verified"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toScanView(s domain.Scan) scanView {
	return scanView{
		ID: s.ID, AttemptID: s.AttemptID, FilePath: s.FilePath,
		OCRScore: s.OCRScore, OCRConfidence: s.OCRConfidence, OCRRawText: s.OCRRawText,
		Verified: s.IsVerified(), CreatedAt: s.CreatedAt,
	}
}

type attemptView struct {
	ID            uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	VariantNumber int       `json:"variant_number"`
	Status        string    `json:"status"`
	ScoreTotal    *int      `json:"score_total,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
}

func toAttemptView(a domain.Attempt) attemptView {
	return attemptView{
		ID: a.ID, RegistrationID: a.RegistrationID, VariantNumber: a.VariantNumber,
		Status: string(a.Status), ScoreTotal: a.ScoreTotal, Confidence: a.Confidence,
	}
}

// pathID parses a UUID path variable.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.E(domain.KindValidation, "invalid %s %q", name, raw)
	}
	return id, nil
}

// pageFrom reads skip/limit query parameters.
func pageFrom(r *http.Request) store.Page {
	var page store.Page
	if v := r.URL.Query().Get("skip"); v != "" {
		page.Skip, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		page.Limit, _ = strconv.Atoi(v)
	}
	return page
}
