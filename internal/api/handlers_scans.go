package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/service"
)

func (s *Server) handleScanUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxScanSize+1)
	if err := r.ParseMultipartForm(service.MaxScanSize); err != nil {
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

	var attemptID *uuid.UUID
	if raw := r.FormValue("attempt_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.E(domain.KindValidation, "invalid attempt_id %q", raw))
			return
		}
		attemptID = &id
	}

	res, err := s.scoringSvc.Upload(r.Context(), subjectFrom(r), data, header.Header.Get("Content-Type"), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"scan_id": res.ScanID,
		"task_id": res.TaskID,
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	unverifiedOnly := r.URL.Query().Get("unverified_only") == "true"
	scans, err := s.scoringSvc.List(r.Context(), subjectFrom(r), unverifiedOnly, pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]scanView, 0, len(scans))
	for _, sc := range scans {
		views = append(views, toScanView(sc))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	scan, err := s.scoringSvc.Get(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScanView(scan))
}

func (s *Server) handleScanImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	scan, err := s.scoringSvc.Get(r.Context(), subjectFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	obj, err := s.scoringSvc.Object(r.Context(), subjectFrom(r), scan)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}

func (s *Server) handleVerifyScan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		CorrectedScore *int `json:"corrected_score"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	scan, err := s.scoringSvc.VerifyScan(r.Context(), subjectFrom(r), id, body.CorrectedScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScanView(scan))
}

func (s *Server) handleApplyScore(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r, "attempt_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Score int `json:"score"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	attempt, err := s.scoringSvc.ApplyScore(r.Context(), subjectFrom(r), attemptID, body.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptView(attempt))
}
