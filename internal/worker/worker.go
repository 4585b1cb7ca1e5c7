// Package worker runs the queued OCR jobs: decode the sheet QR, link
// the scan to its attempt, read the score region and auto-apply
// confident scores.
package worker

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/metrics"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
	"github.com/olympiadqr/backend/internal/vision"
)

// A4 page size in pixels at the processing DPI. Scans normalise to
// this canvas before the region crop.
var (
	pageWidthPx  = int(math.Round(210 * vision.MMToPx))
	pageHeightPx = int(math.Round(297 * vision.MMToPx))
)

var logger = log.New(log.Writer(), "[OCR] ", log.LstdFlags)

// Worker consumes the job queue. Each job runs single-threaded with
// its own store transaction.
type Worker struct {
	store      store.Store
	objects    objstore.Store
	queue      jobs.Queue
	tokens     *token.Service
	qr         vision.QRDecoder
	rasterizer vision.PDFRasterizer
	ocr        vision.ScoreOCR
	cfg        config.Config
	metrics    *metrics.Metrics
}

func New(st store.Store, objects objstore.Store, queue jobs.Queue, tokens *token.Service,
	qr vision.QRDecoder, rasterizer vision.PDFRasterizer, ocr vision.ScoreOCR,
	cfg config.Config, m *metrics.Metrics) *Worker {
	return &Worker{
		store:      st,
		objects:    objects,
		queue:      queue,
		tokens:     tokens,
		qr:         qr,
		rasterizer: rasterizer,
		ocr:        ocr,
		cfg:        cfg,
		metrics:    m,
	}
}

// Run dequeues until ctx is cancelled. Failures re-queue with a fixed
// delay until the retry ceiling, then the scan is left without OCR
// fields.
func (w *Worker) Run(ctx context.Context) error {
	logger.Printf("worker started (retries=%d, delay=%ds)", w.cfg.Worker.MaxRetries, w.cfg.Worker.RetryDelaySecs)
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Printf("worker stopping: %v", ctx.Err())
				return nil
			}
			logger.Printf("dequeue failed: %v", err)
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) handle(ctx context.Context, job jobs.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(w.cfg.Worker.JobTimeoutSecs)*time.Second)
	defer cancel()

	var err error
	switch job.Name {
	case jobs.JobProcessScanOCR:
		var payload jobs.ScanOCRPayload
		if err = job.Bind(&payload); err == nil {
			err = w.ProcessScan(jobCtx, payload.ScanID)
		}
	default:
		logger.Printf("unknown job %q, dropping", job.Name)
		return
	}
	if err == nil {
		return
	}

	if job.Attempt >= w.cfg.Worker.MaxRetries {
		logger.Printf("job %s failed permanently after %d attempts: %v", job.ID, job.Attempt, err)
		w.metrics.ScanProcessed("failed")
		return
	}
	logger.Printf("job %s attempt %d failed, re-queueing: %v", job.ID, job.Attempt, err)
	job.Attempt++
	w.metrics.JobRetried()
	delay := time.Duration(w.cfg.Worker.RetryDelaySecs) * time.Second
	if err := w.queue.EnqueueIn(ctx, job, delay); err != nil {
		logger.Printf("re-queue of job %s failed: %v", job.ID, err)
	}
}

// ProcessScan is the OCR pipeline for one scan.
func (w *Worker) ProcessScan(ctx context.Context, scanID uuid.UUID) error {
	return w.store.WithTx(ctx, func(st store.Store) error {
		scan, err := st.Scans().GetByID(ctx, scanID)
		if err != nil {
			return err
		}
		obj, err := w.objects.Get(ctx, w.cfg.Storage.ScansBucket, scan.FilePath)
		if err != nil {
			return err
		}

		image := obj.Data
		if vision.IsPDF(image) {
			image, err = w.rasterizer.RasterizeFirstPage(ctx, obj.Data, vision.ScanDPI)
			if err != nil {
				return err
			}
		}

		attempt, linked, err := w.linkAttempt(ctx, st, &scan, image)
		if err != nil {
			return err
		}

		region := vision.RegionMM{
			X:      w.cfg.OCR.ScoreFieldX,
			Y:      w.cfg.OCR.ScoreFieldY,
			Width:  w.cfg.OCR.ScoreFieldWidth,
			Height: w.cfg.OCR.ScoreFieldHeight,
		}.ToPixels(pageWidthPx, pageHeightPx)
		lines, err := w.ocr.RecognizeRegion(ctx, image, region)
		if err != nil {
			return err
		}
		result := vision.ParseScore(lines)
		if err := scan.UpdateOCRResult(result.Score, result.Confidence, result.RawText); err != nil {
			return err
		}
		if err := st.Scans().Update(ctx, scan); err != nil {
			return err
		}

		if !linked {
			w.metrics.ScanProcessed("unmatched")
			logger.Printf("scan %s processed, no attempt matched", scan.ID)
			return nil
		}

		if result.Score != nil && result.Confidence != nil &&
			*result.Confidence >= w.cfg.OCR.ConfidenceThreshold {
			if err := attempt.ApplyScore(*result.Score, result.Confidence); err != nil {
				return err
			}
			if err := st.Attempts().Update(ctx, attempt); err != nil {
				return err
			}
			w.metrics.OCRAutoApplied()
			w.metrics.ScanProcessed("auto_applied")
			logger.Printf("scan %s auto-applied score %d (confidence %.2f) to attempt %s",
				scan.ID, *result.Score, *result.Confidence, attempt.ID)
			return nil
		}

		if attempt.Status == domain.AttemptPrinted {
			if err := attempt.MarkScanned(); err != nil {
				return err
			}
			if err := st.Attempts().Update(ctx, attempt); err != nil {
				return err
			}
		}
		w.metrics.ScanProcessed("scanned")
		logger.Printf("scan %s awaits manual verification for attempt %s", scan.ID, attempt.ID)
		return nil
	})
}

// linkAttempt decodes the sheet QR and resolves the attempt. A scan
// uploaded with an explicit attempt keeps it.
func (w *Worker) linkAttempt(ctx context.Context, st store.Store, scan *domain.Scan, image []byte) (domain.Attempt, bool, error) {
	if scan.AttemptID != nil {
		attempt, err := st.Attempts().GetByID(ctx, *scan.AttemptID)
		if err != nil {
			return domain.Attempt{}, false, err
		}
		return attempt, true, nil
	}

	payload, found, err := w.qr.Decode(ctx, image)
	if err != nil {
		return domain.Attempt{}, false, err
	}
	if !found {
		return domain.Attempt{}, false, nil
	}
	attempt, err := st.Attempts().GetBySheetTokenHash(ctx, w.tokens.Hash(payload))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Attempt{}, false, nil
		}
		return domain.Attempt{}, false, err
	}
	scan.AttemptID = &attempt.ID
	return attempt, true, nil
}
