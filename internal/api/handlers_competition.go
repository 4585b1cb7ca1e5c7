package api

import (
	"net/http"
	"time"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/service"
)

type competitionBody struct {
	Name              string    `json:"name"`
	Date              time.Time `json:"date"`
	RegistrationStart time.Time `json:"registration_start"`
	RegistrationEnd   time.Time `json:"registration_end"`
	VariantsCount     int       `json:"variants_count"`
	MaxScore          int       `json:"max_score"`
}

func (b competitionBody) input() service.CompetitionInput {
	return service.CompetitionInput{
		Name: b.Name, Date: b.Date,
		RegistrationStart: b.RegistrationStart, RegistrationEnd: b.RegistrationEnd,
		VariantsCount: b.VariantsCount, MaxScore: b.MaxScore,
	}
}

func (s *Server) handleListCompetitions(w http.ResponseWriter, r *http.Request) {
	comps, err := s.compSvc.List(r.Context(), r.URL.Query().Get("status"), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]competitionView, 0, len(comps))
	for _, c := range comps {
		views = append(views, toCompetitionView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	comp, err := s.compSvc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompetitionView(comp))
}

func (s *Server) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	var body competitionBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	comp, err := s.compSvc.Create(r.Context(), subjectFrom(r), body.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompetitionView(comp))
}

func (s *Server) handleUpdateCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body competitionBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	comp, err := s.compSvc.Update(r.Context(), subjectFrom(r), id, body.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompetitionView(comp))
}

func (s *Server) handleDeleteCompetition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.compSvc.Delete(r.Context(), subjectFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTransition builds the lifecycle endpoints; each maps to one
// target status.
func (s *Server) handleTransition(to string) http.HandlerFunc {
	target := domain.CompetitionStatus(to)
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		comp, err := s.compSvc.Transition(r.Context(), subjectFrom(r), id, target)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCompetitionView(comp))
	}
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	rooms, err := s.compSvc.ListRooms(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.compSvc.CreateRoom(r.Context(), subjectFrom(r), id, body.Name, body.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	room, err := s.compSvc.UpdateRoom(r.Context(), subjectFrom(r), id, body.Name, body.Capacity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.compSvc.DeleteRoom(r.Context(), subjectFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "competition_id")
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := s.resultsSvc.Results(r.Context(), id)
	if err != nil {
		// The error table surfaces unpublished results as 403.
		if domain.IsKind(err, domain.KindInvalidState) {
			err = domain.E(domain.KindForbidden, "results are not published yet")
		}
		writeError(w, err)
		return
	}
	type row struct {
		Rank            int    `json:"rank"`
		ParticipantName string `json:"participant_name"`
		School          string `json:"school"`
		Grade           *int   `json:"grade,omitempty"`
		Score           int    `json:"score"`
		MaxScore        int    `json:"max_score"`
	}
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		out = append(out, row(r))
	}
	writeJSON(w, http.StatusOK, out)
}
