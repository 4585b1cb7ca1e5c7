// Package api exposes the workflows over REST/JSON.
package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/metrics"
	"github.com/olympiadqr/backend/internal/service"
)

var logger = log.New(log.Writer(), "[API] ", log.LstdFlags)

// Server wires the services to the router.
type Server struct {
	cfg     config.Config
	jwt     *auth.Manager
	limiter *RateLimiter
	metrics *metrics.Metrics

	authSvc      *service.AuthService
	regSvc       *service.RegistrationService
	admissionSvc *service.AdmissionService
	compSvc      *service.CompetitionService
	scoringSvc   *service.ScoringService
	resultsSvc   *service.ResultsService
	invigSvc     *service.InvigilatorService
	profileSvc   *service.ProfileService
	adminSvc     *service.AdminService
}

// NewServer builds every workflow service over the shared deps.
func NewServer(deps service.Deps) *Server {
	regSvc := service.NewRegistrationService(deps)
	return &Server{
		cfg:          deps.Cfg,
		jwt:          deps.JWT,
		limiter:      NewRateLimiter(30, time.Minute),
		metrics:      deps.Metrics,
		authSvc:      service.NewAuthService(deps),
		regSvc:       regSvc,
		admissionSvc: service.NewAdmissionService(deps),
		compSvc:      service.NewCompetitionService(deps),
		scoringSvc:   service.NewScoringService(deps),
		resultsSvc:   service.NewResultsService(deps),
		invigSvc:     service.NewInvigilatorService(deps),
		profileSvc:   service.NewProfileService(deps),
		adminSvc:     service.NewAdminService(deps, regSvc),
	}
}

// Router assembles the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.cors)
	r.Use(s.authenticate)

	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Auth
	v1.HandleFunc("/auth/register", s.instrument("auth_register", s.limit(s.handleRegister))).Methods("POST")
	v1.HandleFunc("/auth/login", s.instrument("auth_login", s.limit(s.handleLogin))).Methods("POST")
	v1.HandleFunc("/auth/me", s.handleMe).Methods("GET")

	// Competitions
	v1.HandleFunc("/competitions", s.handleListCompetitions).Methods("GET")
	v1.HandleFunc("/competitions", s.handleCreateCompetition).Methods("POST")
	v1.HandleFunc("/competitions/{id}", s.handleGetCompetition).Methods("GET")
	v1.HandleFunc("/competitions/{id}", s.handleUpdateCompetition).Methods("PUT")
	v1.HandleFunc("/competitions/{id}", s.handleDeleteCompetition).Methods("DELETE")
	v1.HandleFunc("/competitions/{id}/open-registration", s.handleTransition("registration_open")).Methods("POST")
	v1.HandleFunc("/competitions/{id}/start", s.handleTransition("in_progress")).Methods("POST")
	v1.HandleFunc("/competitions/{id}/start-checking", s.handleTransition("checking")).Methods("POST")
	v1.HandleFunc("/competitions/{id}/publish", s.handleTransition("published")).Methods("POST")
	v1.HandleFunc("/competitions/{id}/registrations", s.handleListCompetitionRegistrations).Methods("GET")
	v1.HandleFunc("/competitions/{id}/rooms", s.handleListRooms).Methods("GET")
	v1.HandleFunc("/competitions/{id}/rooms", s.handleCreateRoom).Methods("POST")
	v1.HandleFunc("/rooms/{id}", s.handleUpdateRoom).Methods("PUT")
	v1.HandleFunc("/rooms/{id}", s.handleDeleteRoom).Methods("DELETE")

	// Registrations
	v1.HandleFunc("/registrations", s.instrument("register", s.limit(s.handleCreateRegistration))).Methods("POST")
	v1.HandleFunc("/registrations", s.handleListOwnRegistrations).Methods("GET")
	v1.HandleFunc("/registrations/{id}", s.handleGetRegistration).Methods("GET")
	v1.HandleFunc("/registrations/{id}/refresh-token", s.handleRefreshToken).Methods("POST")
	v1.HandleFunc("/registrations/{id}/entry-token", s.handleEntryToken).Methods("GET")
	v1.HandleFunc("/registrations/{id}/cancel", s.handleCancelRegistration).Methods("POST")

	// Admission
	v1.HandleFunc("/admission/verify", s.instrument("admission_verify", s.handleAdmissionVerify)).Methods("POST")
	v1.HandleFunc("/admission/{registration_id}/approve", s.instrument("admission_approve", s.handleAdmissionApprove)).Methods("POST")
	v1.HandleFunc("/admission/sheets/{attempt_id}/download", s.handleSheetDownload).Methods("GET")

	// Scans
	v1.HandleFunc("/scans/upload", s.instrument("scan_upload", s.handleScanUpload)).Methods("POST")
	v1.HandleFunc("/scans", s.handleListScans).Methods("GET")
	v1.HandleFunc("/scans/{id}", s.handleGetScan).Methods("GET")
	v1.HandleFunc("/scans/{id}/image", s.handleScanImage).Methods("GET")
	v1.HandleFunc("/scans/{id}/verify", s.handleVerifyScan).Methods("POST")
	v1.HandleFunc("/scans/attempts/{attempt_id}/apply-score", s.handleApplyScore).Methods("POST")

	// Invigilator
	v1.HandleFunc("/invigilator/events", s.handleRecordEvent).Methods("POST")
	v1.HandleFunc("/invigilator/extra-sheet", s.handleExtraSheet).Methods("POST")
	v1.HandleFunc("/invigilator/attempt/{id}/events", s.handleListEvents).Methods("GET")
	v1.HandleFunc("/invigilator/resolve", s.handleResolveAttempt).Methods("POST")
	v1.HandleFunc("/invigilator/attempt/{id}/invalidate", s.handleInvalidateAttempt).Methods("POST")

	// Profiles, institutions, documents
	v1.HandleFunc("/profile", s.handleGetProfile).Methods("GET")
	v1.HandleFunc("/profile", s.handleUpdateProfile).Methods("PUT")
	v1.HandleFunc("/profile/documents", s.handleUploadDocument).Methods("POST")
	v1.HandleFunc("/profile/documents", s.handleListDocuments).Methods("GET")
	v1.HandleFunc("/participants/{id}", s.handleGetParticipant).Methods("GET")
	v1.HandleFunc("/institutions", s.handleListInstitutions).Methods("GET")
	v1.HandleFunc("/institutions", s.handleCreateInstitution).Methods("POST")

	// Admin
	v1.HandleFunc("/admin/users", s.handleAdminCreateUser).Methods("POST")
	v1.HandleFunc("/admin/users", s.handleAdminListUsers).Methods("GET")
	v1.HandleFunc("/admin/users/{id}/active", s.handleAdminSetActive).Methods("PUT")
	v1.HandleFunc("/admin/users/{id}/role", s.handleAdminSetRole).Methods("PUT")
	v1.HandleFunc("/admin/audit-log", s.handleAdminAuditLog).Methods("GET")
	v1.HandleFunc("/admin/statistics/{competition_id}", s.handleAdminStatistics).Methods("GET")
	v1.HandleFunc("/admin/registrations", s.handleAdminBulkRegister).Methods("POST")

	// Results
	v1.HandleFunc("/results/{competition_id}", s.handleResults).Methods("GET")

	return r
}

// Start blocks serving HTTP.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.Port
	logger.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
