package api

import (
	"net/http"
	"strconv"
)

func (s *Server) handleAdmissionVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.admissionSvc.Verify(r.Context(), subjectFrom(r), body.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"registration":     toRegistrationView(res.Registration),
		"participant":      toParticipantView(res.Participant),
		"competition":      toCompetitionView(res.Competition),
		"institution_name": res.InstitutionName,
		"has_documents":    res.HasDocuments,
		"can_proceed":      res.CanProceed,
		"reason":           res.Reason,
	})
}

func (s *Server) handleAdmissionApprove(w http.ResponseWriter, r *http.Request) {
	regID, err := pathID(r, "registration_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.admissionSvc.Approve(r.Context(), subjectFrom(r), regID, body.Token, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempt_id":     res.AttemptID,
		"variant_number": res.VariantNumber,
		"pdf_url":        "/api/v1/" + res.DownloadPath,
		"sheet_token":    res.RawSheetToken,
		"room_name":      res.RoomName,
		"seat_number":    res.SeatNumber,
	})
}

func (s *Server) handleSheetDownload(w http.ResponseWriter, r *http.Request) {
	attemptID, err := pathID(r, "attempt_id")
	if err != nil {
		writeError(w, err)
		return
	}
	obj, err := s.admissionSvc.DownloadSheet(r.Context(), subjectFrom(r), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}
