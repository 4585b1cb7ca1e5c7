package api

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/service"
)

// maxDocumentSize bounds personal document uploads to 10 MiB.
const maxDocumentSize = 10 << 20

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profileSvc.GetOwn(r.Context(), subjectFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantView(p))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName      *string    `json:"full_name"`
		School        *string    `json:"school"`
		Grade         *int       `json:"grade"`
		InstitutionID *uuid.UUID `json:"institution_id"`
		DateOfBirth   *time.Time `json:"date_of_birth"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.profileSvc.UpdateOwn(r.Context(), subjectFrom(r), service.UpdateInput{
		FullName:      body.FullName,
		School:        body.School,
		Grade:         body.Grade,
		InstitutionID: body.InstitutionID,
		DateOfBirth:   body.DateOfBirth,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantView(p))
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.profileSvc.Get(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantView(p))
}

func (s *Server) handleListInstitutions(w http.ResponseWriter, r *http.Request) {
	insts, err := s.profileSvc.SearchInstitutions(r.Context(), subjectFrom(r), r.URL.Query().Get("q"), pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insts)
}

func (s *Server) handleCreateInstitution(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
		City      string `json:"city"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	inst, err := s.profileSvc.CreateInstitution(r.Context(), subjectFrom(r), body.Name, body.ShortName, body.City)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentSize+1)
	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		writeError(w, domain.E(domain.KindValidation, "invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.E(domain.KindValidation, "missing file field"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, domain.WrapErr(domain.KindRetryableIO, err, "reading upload"))
		return
	}
	doc, err := s.profileSvc.UploadDocument(r.Context(), subjectFrom(r), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.profileSvc.ListDocuments(r.Context(), subjectFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
