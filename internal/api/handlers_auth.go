package api

import (
	"net/http"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/service"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		School   string `json:"school"`
		Grade    *int   `json:"grade"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.authSvc.Register(r.Context(), service.RegisterInput{
		Email:    body.Email,
		Password: body.Password,
		FullName: body.FullName,
		School:   body.School,
		Grade:    body.Grade,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":         toUserView(res.User),
		"participant":  toParticipantView(res.Participant),
		"access_token": res.Token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, token, err := s.authSvc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":         toUserView(user),
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sub := subjectFrom(r)
	if !sub.Present {
		writeError(w, domain.E(domain.KindUnauthenticated, "authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, toUserView(sub.User))
}
