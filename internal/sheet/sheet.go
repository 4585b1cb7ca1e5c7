// Package sheet lays out answer sheets and registration badges. The
// layout is fixed A4; the score field position must match the OCR
// worker's crop region, so both read the same configuration values.
package sheet

import (
	"context"

	"github.com/google/uuid"
)

// A4 page size in millimetres.
const (
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
)

// Default score-field rectangle, millimetres from the page's top-left
// corner. Overridable through configuration.
const (
	DefaultScoreFieldX      = 140.0
	DefaultScoreFieldY      = 245.0
	DefaultScoreFieldWidth  = 40.0
	DefaultScoreFieldHeight = 15.0
)

// Badge grid on a bulk pre-registration page.
const (
	BadgeColumns = 3
	BadgeRows    = 3
	BadgesPerPage = BadgeColumns * BadgeRows
)

// SheetData is everything printed on a primary answer sheet.
type SheetData struct {
	CompetitionName string
	ParticipantName string
	School          string
	VariantNumber   int
	RoomName        string
	SeatNumber      int
	// RawSheetToken goes into the sheet QR; scans are matched back to
	// the attempt by its HMAC.
	RawSheetToken string
	// QRErrorCorrection is one of L, M, Q, H.
	QRErrorCorrection string
}

// ExtraSheetData is printed on an extra sheet issued mid-exam.
type ExtraSheetData struct {
	CompetitionName string
	AttemptID       uuid.UUID
	SheetNumber     int
	RawSheetToken   string
	QRErrorCorrection string
}

// Badge is one entry-QR badge on a bulk pre-registration handout.
type Badge struct {
	ParticipantName string
	Institution     string
	RawEntryToken   string
}

// Renderer produces the printable PDFs.
type Renderer interface {
	RenderAnswerSheet(ctx context.Context, data SheetData) ([]byte, error)
	RenderExtraSheet(ctx context.Context, data ExtraSheetData) ([]byte, error)
	// RenderBadges lays badges out in a 3x3 grid, grouped by
	// institution so handouts can be distributed per school.
	RenderBadges(ctx context.Context, badges []Badge) ([]byte, error)
}

// GroupBadgesByInstitution orders badges so each institution's badges
// are contiguous, preserving the incoming order within a group.
func GroupBadgesByInstitution(badges []Badge) []Badge {
	byInst := make(map[string][]Badge)
	var order []string
	for _, b := range badges {
		if _, seen := byInst[b.Institution]; !seen {
			order = append(order, b.Institution)
		}
		byInst[b.Institution] = append(byInst[b.Institution], b)
	}
	out := make([]Badge, 0, len(badges))
	for _, inst := range order {
		out = append(out, byInst[inst]...)
	}
	return out
}
