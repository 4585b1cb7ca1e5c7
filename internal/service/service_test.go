package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/seating"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
)

type env struct {
	store   *store.Memory
	queue   *jobs.MemoryQueue
	objects *objstore.Memory
	deps    Deps

	admin    auth.Subject
	admitter auth.Subject
	scanner  auth.Subject
	invig    auth.Subject
}

func newEnv(t *testing.T) *env {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.SecretKey = "unit-test-jwt-secret"
	cfg.Tokens.HMACSecretKey = strings.Repeat("k", 32)

	tokens, err := token.NewService(cfg.Tokens.HMACSecretKey)
	require.NoError(t, err)

	e := &env{
		store:   store.NewMemory(),
		queue:   jobs.NewMemoryQueue(),
		objects: objstore.NewMemory(),
	}
	e.deps = Deps{
		Store:    e.store,
		Tokens:   tokens,
		Queue:    e.queue,
		Objects:  e.objects,
		Renderer: sheet.NewPDFRenderer(),
		Seating:  seating.NewScheduler(),
		JWT:      auth.NewManager(cfg.Auth.SecretKey, cfg.Auth.JWTExpireMinutes),
		Cfg:      cfg,
	}
	e.admin = e.staff(t, "admin@olymp.test", domain.RoleAdmin)
	e.admitter = e.staff(t, "door@olymp.test", domain.RoleAdmitter)
	e.scanner = e.staff(t, "scan@olymp.test", domain.RoleScanner)
	e.invig = e.staff(t, "room@olymp.test", domain.RoleInvigilator)
	return e
}

func (e *env) staff(t *testing.T, email string, role domain.UserRole) auth.Subject {
	t.Helper()
	user, err := domain.NewUser(email, "$2a$10$notarealhash", role)
	require.NoError(t, err)
	require.NoError(t, e.store.Users().Create(context.Background(), user))
	return auth.Subject{User: user, Present: true}
}

// participant creates a user plus profile and returns the subject and
// the profile.
func (e *env) participant(t *testing.T, email, name string) (auth.Subject, domain.Participant) {
	t.Helper()
	sub := e.staff(t, email, domain.RoleParticipant)
	p, err := domain.NewParticipant(sub.User.ID, name, "School No. 1", nil)
	require.NoError(t, err)
	require.NoError(t, e.store.Participants().Create(context.Background(), p))
	return sub, p
}

// competition creates a competition and walks it to the given status.
func (e *env) competition(t *testing.T, target domain.CompetitionStatus) domain.Competition {
	t.Helper()
	svc := NewCompetitionService(e.deps)
	comp, err := svc.Create(context.Background(), e.admin, CompetitionInput{
		Name:              "City Mathematics Olympiad",
		Date:              time.Now().Add(48 * time.Hour),
		RegistrationStart: time.Now().Add(-time.Hour),
		RegistrationEnd:   time.Now().Add(24 * time.Hour),
		VariantsCount:     4,
		MaxScore:          100,
	})
	require.NoError(t, err)
	for _, next := range []domain.CompetitionStatus{
		domain.CompetitionRegistrationOpen, domain.CompetitionInProgress,
		domain.CompetitionChecking, domain.CompetitionPublished,
	} {
		if comp.Status == target {
			break
		}
		comp, err = svc.Transition(context.Background(), e.admin, comp.ID, next)
		require.NoError(t, err)
	}
	require.Equal(t, target, comp.Status)
	return comp
}

func TestRegister_DuplicateRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	sub, _ := e.participant(t, "alice@olymp.test", "Alice Ivanova")

	svc := NewRegistrationService(e.deps)
	res, err := svc.Register(ctx, sub, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationPending, res.Registration.Status)
	assert.NotEmpty(t, res.RawToken)
	assert.True(t, res.ExpiresAt.After(time.Now()))

	_, err = svc.Register(ctx, sub, comp.ID)
	assert.True(t, domain.IsKind(err, domain.KindDuplicate))
}

func TestRegister_ClosedCompetition(t *testing.T) {
	e := newEnv(t)
	comp := e.competition(t, domain.CompetitionDraft)
	sub, _ := e.participant(t, "bob@olymp.test", "Bob Petrov")

	_, err := NewRegistrationService(e.deps).Register(context.Background(), sub, comp.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
}

func TestEntryToken_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	owner, _ := e.participant(t, "alice@olymp.test", "Alice Ivanova")
	other, _ := e.participant(t, "eve@olymp.test", "Eve Sidorova")

	svc := NewRegistrationService(e.deps)
	res, err := svc.Register(ctx, owner, comp.ID)
	require.NoError(t, err)

	entry, err := svc.EntryToken(ctx, owner, res.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RawToken, entry.RawToken)

	_, err = svc.EntryToken(ctx, other, res.Registration.ID)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestRefreshToken_OnlyWhenExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	sub, _ := e.participant(t, "alice@olymp.test", "Alice Ivanova")

	svc := NewRegistrationService(e.deps)
	res, err := svc.Register(ctx, sub, comp.ID)
	require.NoError(t, err)

	_, err = svc.RefreshToken(ctx, sub, res.Registration.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState), "fresh token must not refresh")

	// Expire it in place.
	entry, err := e.store.EntryTokens().GetByRegistration(ctx, res.Registration.ID)
	require.NoError(t, err)
	entry.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, e.store.EntryTokens().Update(ctx, entry))

	refreshed, err := svc.RefreshToken(ctx, sub, res.Registration.ID)
	require.NoError(t, err)
	assert.NotEqual(t, res.RawToken, refreshed.RawToken)

	// The old raw value must no longer resolve.
	_, err = e.store.EntryTokens().GetByTokenHash(ctx, e.deps.Tokens.Hash(res.RawToken))
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestAdmission_ApproveFullFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	compSvc := NewCompetitionService(e.deps)
	regSvc := NewRegistrationService(e.deps)
	admSvc := NewAdmissionService(e.deps)

	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	_, err := compSvc.CreateRoom(ctx, e.admin, comp.ID, "Room 101", 30)
	require.NoError(t, err)

	sub, _ := e.participant(t, "alice@olymp.test", "Alice Ivanova")
	res, err := regSvc.Register(ctx, sub, comp.ID)
	require.NoError(t, err)

	_, err = compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionInProgress)
	require.NoError(t, err)

	verify, err := admSvc.Verify(ctx, e.admitter, res.RawToken)
	require.NoError(t, err)
	assert.True(t, verify.CanProceed)
	assert.Equal(t, "Alice Ivanova", verify.Participant.FullName)

	approval, err := admSvc.Approve(ctx, e.admitter, res.Registration.ID, res.RawToken, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, approval.AttemptID)
	assert.Equal(t, "Room 101", approval.RoomName)
	require.NotNil(t, approval.SeatNumber)
	assert.Equal(t, 1, *approval.SeatNumber)
	assert.GreaterOrEqual(t, approval.VariantNumber, 1)
	assert.LessOrEqual(t, approval.VariantNumber, comp.VariantsCount)

	attempt, err := e.store.Attempts().GetByID(ctx, approval.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPrinted, attempt.Status)

	// The rendered PDF landed in the sheets bucket.
	obj, err := e.objects.Get(ctx, e.deps.Cfg.Storage.SheetsBucket, attempt.PDFFilePath)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.True(t, strings.HasPrefix(string(obj.Data), "%PDF-"))

	reg, err := e.store.Registrations().GetByID(ctx, res.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationCompleted, reg.Status)

	// The burnt token cannot be replayed.
	_, err = admSvc.Approve(ctx, e.admitter, res.Registration.ID, res.RawToken, "10.0.0.1")
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
	assert.Contains(t, err.Error(), "already been used")
}

func TestAdmission_VerifyFailureOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admSvc := NewAdmissionService(e.deps)
	regSvc := NewRegistrationService(e.deps)

	_, err := admSvc.Verify(ctx, e.admitter, "no-such-token")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	sub, _ := e.participant(t, "alice@olymp.test", "Alice Ivanova")
	res, err := regSvc.Register(ctx, sub, comp.ID)
	require.NoError(t, err)

	entry, err := e.store.EntryTokens().GetByRegistration(ctx, res.Registration.ID)
	require.NoError(t, err)
	entry.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, e.store.EntryTokens().Update(ctx, entry))

	_, err = admSvc.Verify(ctx, e.admitter, res.RawToken)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
	assert.Contains(t, err.Error(), "expired")
}

func TestAdmission_NoRoomsFallsBackToRandomVariant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	regSvc := NewRegistrationService(e.deps)
	admSvc := NewAdmissionService(e.deps)
	compSvc := NewCompetitionService(e.deps)

	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	sub, _ := e.participant(t, "alice@olymp.test", "Alice Ivanova")
	res, err := regSvc.Register(ctx, sub, comp.ID)
	require.NoError(t, err)
	_, err = compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionInProgress)
	require.NoError(t, err)

	approval, err := admSvc.Approve(ctx, e.admitter, res.Registration.ID, res.RawToken, "")
	require.NoError(t, err)
	assert.Empty(t, approval.RoomName)
	assert.Nil(t, approval.SeatNumber)
	assert.GreaterOrEqual(t, approval.VariantNumber, 1)
	assert.LessOrEqual(t, approval.VariantNumber, comp.VariantsCount)
}

// register signs a fresh participant up while registration is open.
func (e *env) register(t *testing.T, comp domain.Competition, email, name string) RegistrationResult {
	t.Helper()
	sub, _ := e.participant(t, email, name)
	res, err := NewRegistrationService(e.deps).Register(context.Background(), sub, comp.ID)
	require.NoError(t, err)
	return res
}

// approve admits a registration and returns the attempt. The
// competition must already be in progress.
func (e *env) approve(t *testing.T, res RegistrationResult) domain.Attempt {
	t.Helper()
	ctx := context.Background()
	approval, err := NewAdmissionService(e.deps).Approve(ctx, e.admitter, res.Registration.ID, res.RawToken, "")
	require.NoError(t, err)
	attempt, err := e.store.Attempts().GetByID(ctx, approval.AttemptID)
	require.NoError(t, err)
	return attempt
}

func TestResults_RankingAndPublishCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	compSvc := NewCompetitionService(e.deps)
	scoreSvc := NewScoringService(e.deps)
	resultsSvc := NewResultsService(e.deps)

	comp := e.competition(t, domain.CompetitionRegistrationOpen)

	cases := []struct {
		email, name string
		score       int
	}{
		{"a@olymp.test", "Anna", 90},
		{"b@olymp.test", "Boris", 85},
		{"c@olymp.test", "Clara", 85},
		{"d@olymp.test", "Dmitri", 70},
	}
	regs := make([]RegistrationResult, 0, len(cases))
	for _, tc := range cases {
		regs = append(regs, e.register(t, comp, tc.email, tc.name))
	}

	_, err := compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionInProgress)
	require.NoError(t, err)

	for i, tc := range cases {
		attempt := e.approve(t, regs[i])
		_, err := scoreSvc.ApplyScore(ctx, e.scanner, attempt.ID, tc.score)
		require.NoError(t, err)
	}

	// Not published yet.
	_, err = resultsSvc.Results(ctx, comp.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))

	_, err = compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionChecking)
	require.NoError(t, err)
	_, err = compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionPublished)
	require.NoError(t, err)

	rows, err := resultsSvc.Results(ctx, comp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []int{1, 2, 2, 4}, []int{rows[0].Rank, rows[1].Rank, rows[2].Rank, rows[3].Rank})
	assert.Equal(t, "Anna", rows[0].ParticipantName)
	assert.Equal(t, 100, rows[0].MaxScore)

	// Publishing cascaded the attempts.
	scored, err := e.store.Attempts().ListScoredByCompetition(ctx, comp.ID)
	require.NoError(t, err)
	for _, a := range scored {
		assert.Equal(t, domain.AttemptPublished, a.Status)
	}
}

func TestScoring_UploadAndVerify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scoreSvc := NewScoringService(e.deps)
	compSvc := NewCompetitionService(e.deps)

	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	reg := e.register(t, comp, "alice@olymp.test", "Alice Ivanova")
	_, err := compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionInProgress)
	require.NoError(t, err)
	attempt := e.approve(t, reg)

	res, err := scoreSvc.Upload(ctx, e.scanner, []byte("fake png bytes"), "image/png", &attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.queue.Len())

	// Verification without an OCR score needs a corrected one.
	_, err = scoreSvc.VerifyScan(ctx, e.scanner, res.ScanID, nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	corrected := 73
	scan, err := scoreSvc.VerifyScan(ctx, e.scanner, res.ScanID, &corrected)
	require.NoError(t, err)
	assert.True(t, scan.IsVerified())

	got, err := e.store.Attempts().GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptScored, got.Status)
	require.NotNil(t, got.ScoreTotal)
	assert.Equal(t, 73, *got.ScoreTotal)
	assert.Nil(t, got.Confidence, "human-entered scores carry no confidence")
}

func TestScoring_UploadRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewScoringService(e.deps)

	_, err := svc.Upload(ctx, e.scanner, []byte("x"), "text/plain", nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.Upload(ctx, e.scanner, nil, "image/png", nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.Upload(ctx, e.admitter, []byte("x"), "image/png", nil)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestInvigilator_ExtraSheetAndResolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	compSvc := NewCompetitionService(e.deps)
	invSvc := NewInvigilatorService(e.deps)

	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	reg := e.register(t, comp, "alice@olymp.test", "Alice Ivanova")
	_, err := compSvc.Transition(ctx, e.admin, comp.ID, domain.CompetitionInProgress)
	require.NoError(t, err)
	attempt := e.approve(t, reg)

	extra, err := invSvc.IssueExtraSheet(ctx, e.invig, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SheetExtra, extra.Sheet.Kind)
	assert.True(t, strings.HasPrefix(string(extra.PDF), "%PDF-"))

	// The extra sheet's own token resolves to the same attempt.
	resolved, err := invSvc.ResolveAttempt(ctx, e.invig, extra.RawSheetToken)
	require.NoError(t, err)
	assert.Equal(t, attempt.ID, resolved.ID)

	// Events land on the timeline in order.
	_, err = invSvc.RecordEvent(ctx, e.invig, attempt.ID, "start_work", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = invSvc.RecordEvent(ctx, e.invig, attempt.ID, "submit", time.Now())
	require.NoError(t, err)
	events, err := invSvc.ListEvents(ctx, e.invig, attempt.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStartWork, events[0].EventType)
	assert.Equal(t, domain.EventSubmit, events[1].EventType)

	_, err = invSvc.RecordEvent(ctx, e.invig, attempt.ID, "teleport", time.Now())
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	// Invalidation blocks further extra sheets.
	_, err = invSvc.Invalidate(ctx, e.invig, attempt.ID, "rule violation")
	require.NoError(t, err)
	_, err = invSvc.IssueExtraSheet(ctx, e.invig, attempt.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
}

func TestAdmin_StatisticsAndBulkPreRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	regSvc := NewRegistrationService(e.deps)
	adminSvc := NewAdminService(e.deps, regSvc)

	comp := e.competition(t, domain.CompetitionDraft)
	_, p1 := e.participant(t, "a@olymp.test", "Anna")
	_, p2 := e.participant(t, "b@olymp.test", "Boris")

	res, err := adminSvc.BulkPreRegister(ctx, e.admin, comp.ID, []uuid.UUID{p1.ID, p2.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, res.Registered, 2)
	assert.Len(t, res.Skipped, 1, "unknown participant is skipped, not fatal")
	assert.True(t, strings.HasPrefix(string(res.BadgePDF), "%PDF-"))

	// Re-running skips the duplicates.
	res, err = adminSvc.BulkPreRegister(ctx, e.admin, comp.ID, []uuid.UUID{p1.ID})
	require.NoError(t, err)
	assert.Empty(t, res.Registered)
	assert.Len(t, res.Skipped, 1)

	stats, err := adminSvc.Statistics(ctx, e.admin, comp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Registrations[domain.RegistrationPending])

	_, err = adminSvc.Statistics(ctx, e.scanner, comp.ID)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewAuthService(e.deps)

	res, err := svc.Register(ctx, RegisterInput{
		Email:    "new@olymp.test",
		Password: "long-enough-password",
		FullName: "New Person",
		School:   "School No. 2",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleParticipant, res.User.Role)
	assert.NotEmpty(t, res.Token)

	_, _, err = svc.Login(ctx, "new@olymp.test", "wrong")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))

	user, tok, err := svc.Login(ctx, "new@olymp.test", "long-enough-password")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	// Deactivated accounts cannot log in.
	_, err = svc.SetUserActive(ctx, e.admin, user.ID, false)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "new@olymp.test", "long-enough-password")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestAudit_RowsWrittenWithMutations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	comp := e.competition(t, domain.CompetitionRegistrationOpen)
	reg := e.register(t, comp, "alice@olymp.test", "Alice Ivanova")
	_, err := NewCompetitionService(e.deps).Transition(ctx, e.admin, comp.ID, domain.CompetitionInProgress)
	require.NoError(t, err)
	e.approve(t, reg)

	entries, err := e.store.Audit().List(ctx, "registration", store.Page{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "admitted", last.Action)
	assert.NotNil(t, last.Details["attempt_id"])
}
