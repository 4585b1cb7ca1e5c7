package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
)

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AttemptID uuid.UUID  `json:"attempt_id"`
		EventType string     `json:"event_type"`
		At        *time.Time `json:"at"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	at := time.Now().UTC()
	if body.At != nil {
		at = *body.At
	}
	event, err := s.invigSvc.RecordEvent(r.Context(), subjectFrom(r), body.AttemptID, body.EventType, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventView(event))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := s.invigSvc.ListEvents(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		views = append(views, eventView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func eventView(e domain.ParticipantEvent) map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID,
		"attempt_id":  e.AttemptID,
		"event_type":  string(e.EventType),
		"recorded_by": e.RecordedBy,
		"timestamp":   e.Timestamp,
	}
}

func (s *Server) handleResolveAttempt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SheetToken string `json:"sheet_token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	attempt, err := s.invigSvc.ResolveAttempt(r.Context(), subjectFrom(r), body.SheetToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptView(attempt))
}

func (s *Server) handleExtraSheet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AttemptID uuid.UUID `json:"attempt_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.invigSvc.IssueExtraSheet(r.Context(), subjectFrom(r), body.AttemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sheet_id":      res.Sheet.ID,
		"attempt_id":    res.Sheet.AttemptID,
		"sheet_kind":    string(res.Sheet.Kind),
		"sheet_token":   res.RawSheetToken,
		"pdf_file_path": res.Sheet.PDFFilePath,
	})
}

func (s *Server) handleInvalidateAttempt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	attempt, err := s.invigSvc.Invalidate(r.Context(), subjectFrom(r), id, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptView(attempt))
}
