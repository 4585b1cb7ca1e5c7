package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/service"
)

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
		FullName string `json:"full_name"`
		School   string `json:"school"`
		Grade    *int   `json:"grade"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	role, err := domain.ParseUserRole(body.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.authSvc.CreateUser(r.Context(), subjectFrom(r), service.CreateUserInput{
		Email:    body.Email,
		Password: body.Password,
		Role:     role,
		FullName: body.FullName,
		School:   body.School,
		Grade:    body.Grade,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(user))
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.authSvc.ListUsers(r.Context(), subjectFrom(r), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAdminSetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.authSvc.SetUserActive(r.Context(), subjectFrom(r), id, body.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (s *Server) handleAdminSetRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	role, err := domain.ParseUserRole(body.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := s.authSvc.SetUserRole(r.Context(), subjectFrom(r), id, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}

func (s *Server) handleAdminAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.adminSvc.AuditLog(r.Context(), subjectFrom(r), r.URL.Query().Get("entity_type"), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		views = append(views, map[string]interface{}{
			"id":          e.ID,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID,
			"action":      e.Action,
			"user_id":     e.UserID,
			"ip_address":  e.IPAddress,
			"details":     e.Details,
			"timestamp":   e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAdminStatistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "competition_id")
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.adminSvc.Statistics(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminBulkRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CompetitionID  uuid.UUID   `json:"competition_id"`
		ParticipantIDs []uuid.UUID `json:"participant_ids"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.adminSvc.BulkPreRegister(r.Context(), subjectFrom(r), body.CompetitionID, body.ParticipantIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	skipped := make(map[string]string, len(res.Skipped))
	for pid, reason := range res.Skipped {
		skipped[pid.String()] = reason
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"registered":     res.Registered,
		"skipped":        skipped,
		"badge_pdf_size": len(res.BadgePDF),
	})
}
