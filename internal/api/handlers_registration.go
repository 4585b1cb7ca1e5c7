package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/service"
)

type registrationResultView struct {
	Registration registrationView `json:"registration"`
	EntryToken   string           `json:"entry_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

func toRegistrationResultView(res service.RegistrationResult) registrationResultView {
	return registrationResultView{
		Registration: toRegistrationView(res.Registration),
		EntryToken:   res.RawToken,
		ExpiresAt:    res.ExpiresAt,
	}
}

func (s *Server) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompetitionID uuid.UUID `json:"competition_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.regSvc.Register(r.Context(), subjectFrom(r), body.CompetitionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRegistrationResultView(res))
}

func (s *Server) handleListOwnRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.regSvc.ListOwn(r.Context(), subjectFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, toRegistrationView(reg))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListCompetitionRegistrations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	regs, err := s.regSvc.ListByCompetition(r.Context(), subjectFrom(r), id, pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, toRegistrationView(reg))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	reg, err := s.regSvc.Get(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationView(reg))
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.regSvc.RefreshToken(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationResultView(res))
}

func (s *Server) handleEntryToken(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := s.regSvc.EntryToken(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entry_token": entry.RawToken,
		"expires_at":  entry.ExpiresAt,
		"used":        entry.IsUsed(),
	})
}

func (s *Server) handleCancelRegistration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	reg, err := s.regSvc.Cancel(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegistrationView(reg))
}
