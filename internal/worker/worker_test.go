package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
	"github.com/olympiadqr/backend/internal/vision"
)

type fixture struct {
	store   *store.Memory
	objects *objstore.Memory
	queue   *jobs.MemoryQueue
	tokens  *token.Service
	cfg     config.Config

	attempt  domain.Attempt
	rawToken string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Tokens.HMACSecretKey = strings.Repeat("k", 32)
	tokens, err := token.NewService(cfg.Tokens.HMACSecretKey)
	require.NoError(t, err)

	f := &fixture{
		store:   store.NewMemory(),
		objects: objstore.NewMemory(),
		queue:   jobs.NewMemoryQueue(),
		tokens:  tokens,
		cfg:     cfg,
	}

	tok, err := tokens.Generate(cfg.Tokens.QRTokenSizeBytes)
	require.NoError(t, err)
	f.rawToken = tok.Raw
	attempt, err := domain.NewAttempt(uuid.New(), 1, tok.Hash)
	require.NoError(t, err)
	require.NoError(t, f.store.Attempts().Create(context.Background(), attempt))
	f.attempt = attempt
	return f
}

// scan stores image bytes and a matching scan row, unlinked.
func (f *fixture) scan(t *testing.T, data []byte) domain.Scan {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	key := objstore.ScanKey(id, "png")
	require.NoError(t, f.objects.Put(ctx, f.cfg.Storage.ScansBucket, key, objstore.Object{
		Data:        data,
		ContentType: "image/png",
	}))
	scan, err := domain.NewScan(id, nil, key, uuid.New())
	require.NoError(t, err)
	require.NoError(t, f.store.Scans().Create(ctx, scan))
	return scan
}

func (f *fixture) worker(qr vision.QRDecoder, ocr vision.ScoreOCR) *Worker {
	return New(f.store, f.objects, f.queue, f.tokens,
		qr, vision.FakeRasterizer{}, ocr, f.cfg, nil)
}

func TestProcessScan_AutoAppliesConfidentScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scan := f.scan(t, []byte("png bytes"))

	w := f.worker(
		vision.FakeQRDecoder{Payload: f.rawToken, Found: true},
		vision.FakeScoreOCR{Lines: []vision.Line{{Text: "87", Confidence: 0.95}}},
	)
	require.NoError(t, w.ProcessScan(ctx, scan.ID))

	got, err := f.store.Scans().GetByID(ctx, scan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AttemptID)
	assert.Equal(t, f.attempt.ID, *got.AttemptID)
	require.NotNil(t, got.OCRScore)
	assert.Equal(t, 87, *got.OCRScore)

	attempt, err := f.store.Attempts().GetByID(ctx, f.attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptScored, attempt.Status)
	require.NotNil(t, attempt.ScoreTotal)
	assert.Equal(t, 87, *attempt.ScoreTotal)
	require.NotNil(t, attempt.Confidence)
	assert.InDelta(t, 0.95, *attempt.Confidence, 1e-9)
}

func TestProcessScan_LowConfidenceAwaitsVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scan := f.scan(t, []byte("png bytes"))

	w := f.worker(
		vision.FakeQRDecoder{Payload: f.rawToken, Found: true},
		vision.FakeScoreOCR{Lines: []vision.Line{{Text: "42", Confidence: 0.55}}},
	)
	require.NoError(t, w.ProcessScan(ctx, scan.ID))

	got, err := f.store.Scans().GetByID(ctx, scan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OCRScore)
	assert.Equal(t, 42, *got.OCRScore)
	assert.False(t, got.IsVerified())

	attempt, err := f.store.Attempts().GetByID(ctx, f.attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptScanned, attempt.Status)
	assert.Nil(t, attempt.ScoreTotal)
}

func TestProcessScan_NoQRLeavesScanUnmatched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scan := f.scan(t, []byte("png bytes"))

	w := f.worker(
		vision.FakeQRDecoder{Found: false},
		vision.FakeScoreOCR{Lines: []vision.Line{{Text: "99", Confidence: 0.99}}},
	)
	require.NoError(t, w.ProcessScan(ctx, scan.ID))

	got, err := f.store.Scans().GetByID(ctx, scan.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AttemptID)
	require.NotNil(t, got.OCRScore, "OCR still runs for later manual linking")
	assert.Equal(t, 99, *got.OCRScore)

	attempt, err := f.store.Attempts().GetByID(ctx, f.attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptPrinted, attempt.Status)
}

func TestProcessScan_ExplicitAttemptSkipsQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := uuid.New()
	key := objstore.ScanKey(id, "png")
	require.NoError(t, f.objects.Put(ctx, f.cfg.Storage.ScansBucket, key, objstore.Object{
		Data: []byte("png bytes"), ContentType: "image/png",
	}))
	scan, err := domain.NewScan(id, &f.attempt.ID, key, uuid.New())
	require.NoError(t, err)
	require.NoError(t, f.store.Scans().Create(ctx, scan))

	// A decoder that errors proves the QR path is never taken.
	w := f.worker(
		vision.FakeQRDecoder{Err: assert.AnError},
		vision.FakeScoreOCR{Lines: []vision.Line{{Text: "50", Confidence: 0.9}}},
	)
	require.NoError(t, w.ProcessScan(ctx, scan.ID))

	attempt, err := f.store.Attempts().GetByID(ctx, f.attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptScored, attempt.Status)
}

func TestProcessScan_PDFGetsRasterized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scan := f.scan(t, []byte("%PDF-1.4 pretend"))

	w := New(f.store, f.objects, f.queue, f.tokens,
		vision.FakeQRDecoder{Payload: f.rawToken, Found: true},
		vision.FakeRasterizer{Image: []byte("rasterized png")},
		vision.FakeScoreOCR{Lines: []vision.Line{{Text: "61", Confidence: 0.9}}},
		f.cfg, nil)
	require.NoError(t, w.ProcessScan(ctx, scan.ID))

	attempt, err := f.store.Attempts().GetByID(ctx, f.attempt.ID)
	require.NoError(t, err)
	require.NotNil(t, attempt.ScoreTotal)
	assert.Equal(t, 61, *attempt.ScoreTotal)
}

func TestHandle_FailedJobRequeuesWithDelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A job for a scan that does not exist keeps failing.
	job, err := jobs.NewJob(jobs.JobProcessScanOCR, jobs.ScanOCRPayload{ScanID: uuid.New()})
	require.NoError(t, err)

	f.cfg.Worker.RetryDelaySecs = 0
	w := f.worker(vision.FakeQRDecoder{}, vision.FakeScoreOCR{})
	w.handle(ctx, job)
	assert.Equal(t, 1, f.queue.Len(), "first failure re-queues")

	requeued, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, requeued.Attempt)

	// At the retry ceiling the job is dropped.
	requeued.Attempt = f.cfg.Worker.MaxRetries
	w.handle(ctx, requeued)
	assert.Equal(t, 0, f.queue.Len())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	w := f.worker(vision.FakeQRDecoder{}, vision.FakeScoreOCR{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
