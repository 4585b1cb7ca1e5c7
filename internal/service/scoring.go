package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/domain"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/store"
)

// ScoringService accepts uploaded scans, queues them for OCR and
// applies verified scores.
type ScoringService struct {
	deps Deps
}

func NewScoringService(deps Deps) *ScoringService {
	return &ScoringService{deps: deps}
}

// allowed upload formats; extensions derive from the MIME type.
var scanExtensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"application/pdf": "pdf",
}

// MaxScanSize bounds uploads to 50 MiB.
const MaxScanSize = 50 << 20

// UploadResult acknowledges an accepted scan.
type UploadResult struct {
	ScanID uuid.UUID
	TaskID uuid.UUID
}

// Upload stores the scan bytes, creates the Scan row and enqueues the
// OCR job. The attempt link stays empty unless the caller knows it;
// the worker fills it from the sheet QR.
func (s *ScoringService) Upload(ctx context.Context, sub auth.Subject, data []byte, mimeType string, attemptID *uuid.UUID) (UploadResult, error) {
	if err := auth.Require(sub, domain.RoleScanner); err != nil {
		return UploadResult{}, err
	}
	ext, ok := scanExtensions[mimeType]
	if !ok {
		return UploadResult{}, domain.E(domain.KindValidation, "unsupported content type %q", mimeType)
	}
	if len(data) == 0 {
		return UploadResult{}, domain.E(domain.KindValidation, "empty upload")
	}
	if len(data) > MaxScanSize {
		return UploadResult{}, domain.E(domain.KindValidation, "upload exceeds 50 MiB")
	}

	scanID := uuid.New()
	key := objstore.ScanKey(scanID, ext)
	if err := s.deps.Objects.Put(ctx, s.deps.Cfg.Storage.ScansBucket, key, objstore.Object{
		Data:        data,
		ContentType: mimeType,
	}); err != nil {
		return UploadResult{}, err
	}

	scan, err := domain.NewScan(scanID, attemptID, key, sub.User.ID)
	if err != nil {
		return UploadResult{}, err
	}
	if err := s.deps.Store.Scans().Create(ctx, scan); err != nil {
		return UploadResult{}, err
	}

	job, err := jobs.NewJob(jobs.JobProcessScanOCR, jobs.ScanOCRPayload{ScanID: scanID})
	if err != nil {
		return UploadResult{}, err
	}
	if err := s.deps.Queue.Enqueue(ctx, job); err != nil {
		return UploadResult{}, err
	}
	logger.Printf("scan %s accepted, job %s queued", scanID, job.ID)
	return UploadResult{ScanID: scanID, TaskID: job.ID}, nil
}

// Get returns one scan for staff review.
func (s *ScoringService) Get(ctx context.Context, sub auth.Subject, scanID uuid.UUID) (domain.Scan, error) {
	if err := auth.Require(sub, domain.RoleScanner); err != nil {
		return domain.Scan{}, err
	}
	return s.deps.Store.Scans().GetByID(ctx, scanID)
}

// Object fetches the stored bytes of a scan for on-screen review.
func (s *ScoringService) Object(ctx context.Context, sub auth.Subject, scan domain.Scan) (objstore.Object, error) {
	if err := auth.Require(sub, domain.RoleScanner); err != nil {
		return objstore.Object{}, err
	}
	return s.deps.Objects.Get(ctx, s.deps.Cfg.Storage.ScansBucket, scan.FilePath)
}

// List returns scans, optionally only those not yet human-verified.
func (s *ScoringService) List(ctx context.Context, sub auth.Subject, unverifiedOnly bool, page store.Page) ([]domain.Scan, error) {
	if err := auth.Require(sub, domain.RoleScanner); err != nil {
		return nil, err
	}
	if unverifiedOnly {
		return s.deps.Store.Scans().ListUnverified(ctx, page)
	}
	return s.deps.Store.Scans().List(ctx, page)
}

// VerifyScan records a human check of the OCR result and applies the
// corrected (or confirmed) score to the linked attempt.
func (s *ScoringService) VerifyScan(ctx context.Context, sub auth.Subject, scanID uuid.UUID, correctedScore *int) (domain.Scan, error) {
	if err := auth.Require(sub, domain.RoleScanner); err != nil {
		return domain.Scan{}, err
	}
	var scan domain.Scan
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		scan, err = st.Scans().GetByID(ctx, scanID)
		if err != nil {
			return err
		}
		if scan.AttemptID == nil {
			return domain.E(domain.KindInvalidState, "scan is not linked to an attempt")
		}
		if err := scan.Verify(sub.User.ID, correctedScore); err != nil {
			return err
		}
		if scan.OCRScore == nil {
			return domain.E(domain.KindValidation, "no score to apply; provide corrected_score")
		}
		if err := st.Scans().Update(ctx, scan); err != nil {
			return err
		}

		attempt, err := st.Attempts().GetByID(ctx, *scan.AttemptID)
		if err != nil {
			return err
		}
		if err := attempt.ApplyScore(*scan.OCRScore, nil); err != nil {
			return err
		}
		if err := st.Attempts().Update(ctx, attempt); err != nil {
			return err
		}
		return audit(ctx, st, "scan", scan.ID, "score_verified", &sub.User.ID, "", map[string]interface{}{
			"attempt_id": attempt.ID.String(),
			"score":      *scan.OCRScore,
		})
	})
	return scan, err
}

// ApplyScore sets an attempt's score directly, with no scan involved.
func (s *ScoringService) ApplyScore(ctx context.Context, sub auth.Subject, attemptID uuid.UUID, score int) (domain.Attempt, error) {
	if err := auth.Require(sub, domain.RoleScanner); err != nil {
		return domain.Attempt{}, err
	}
	var attempt domain.Attempt
	err := s.deps.Store.WithTx(ctx, func(st store.Store) error {
		var err error
		attempt, err = st.Attempts().GetByID(ctx, attemptID)
		if err != nil {
			return err
		}
		if err := attempt.ApplyScore(score, nil); err != nil {
			return err
		}
		if err := st.Attempts().Update(ctx, attempt); err != nil {
			return err
		}
		return audit(ctx, st, "attempt", attempt.ID, "score_applied", &sub.User.ID, "", map[string]interface{}{
			"score": score,
		})
	})
	return attempt, err
}
