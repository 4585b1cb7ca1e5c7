// Package vision defines the image-processing surface of the OCR
// worker. The QR decoder, rasterizer and OCR engine are external
// processes or cgo bindings behind interfaces; the region math and
// score parsing live here and are pure.
package vision

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// ScanDPI is the resolution scans are processed at. Millimetre
// coordinates convert to pixels at this density.
const ScanDPI = 300

// MMToPx is the pixels-per-millimetre factor at ScanDPI.
const MMToPx = ScanDPI / 25.4

// RegionMM is a rectangle in millimetres from the page's top-left
// corner.
type RegionMM struct {
	X, Y, Width, Height float64
}

// RegionPx is a pixel rectangle, clamped to the image bounds.
type RegionPx struct {
	X, Y, Width, Height int
}

// regionMargin expands the score field to tolerate printing and
// scanning skew.
const regionMargin = 0.10

// ToPixels converts the region to pixels at ScanDPI, expands it by the
// safety margin on every side and clamps it to the image.
func (r RegionMM) ToPixels(imgWidth, imgHeight int) RegionPx {
	x := r.X * MMToPx
	y := r.Y * MMToPx
	w := r.Width * MMToPx
	h := r.Height * MMToPx

	x -= w * regionMargin
	y -= h * regionMargin
	w *= 1 + 2*regionMargin
	h *= 1 + 2*regionMargin

	px := RegionPx{
		X:      int(math.Round(x)),
		Y:      int(math.Round(y)),
		Width:  int(math.Round(w)),
		Height: int(math.Round(h)),
	}
	if px.X < 0 {
		px.Width += px.X
		px.X = 0
	}
	if px.Y < 0 {
		px.Height += px.Y
		px.Y = 0
	}
	if px.X+px.Width > imgWidth {
		px.Width = imgWidth - px.X
	}
	if px.Y+px.Height > imgHeight {
		px.Height = imgHeight - px.Y
	}
	if px.Width < 0 {
		px.Width = 0
	}
	if px.Height < 0 {
		px.Height = 0
	}
	return px
}

// Line is one recognised text line with its confidence in [0, 1].
type Line struct {
	Text       string
	Confidence float64
}

// OCRResult is the parsed outcome of a score-region read.
type OCRResult struct {
	// Score is nil when no digits were recognised.
	Score *int
	// Confidence is the mean of per-line confidences, nil when no
	// lines were recognised.
	Confidence *float64
	// RawText is every recognised string joined with spaces.
	RawText string
}

// ParseScore concatenates the recognised lines, takes the first
// contiguous run of digits as the score and averages the confidences.
func ParseScore(lines []Line) OCRResult {
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.Text)
	}
	res := OCRResult{RawText: strings.Join(texts, " ")}
	if len(lines) == 0 {
		return res
	}

	sum := 0.0
	for _, l := range lines {
		sum += l.Confidence
	}
	mean := sum / float64(len(lines))
	res.Confidence = &mean

	if digits := firstDigitRun(res.RawText); digits != "" {
		// Scores fit comfortably in an int; longer runs are noise.
		if len(digits) <= 6 {
			n := 0
			for _, r := range digits {
				n = n*10 + int(r-'0')
			}
			res.Score = &n
		}
	}
	return res
}

func firstDigitRun(s string) string {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

// QRDecoder finds and decodes a QR code in an image.
type QRDecoder interface {
	// Decode returns the QR payload, or found=false when no QR is
	// present.
	Decode(ctx context.Context, image []byte) (payload string, found bool, err error)
}

// PDFRasterizer renders the first page of a PDF to an image at the
// given DPI.
type PDFRasterizer interface {
	RasterizeFirstPage(ctx context.Context, pdf []byte, dpi int) ([]byte, error)
}

// ScoreOCR crops the region out of the image, preprocesses it
// (grayscale, CLAHE equalisation, Otsu binarisation) and runs text
// recognition on the result.
type ScoreOCR interface {
	RecognizeRegion(ctx context.Context, image []byte, region RegionPx) ([]Line, error)
}

// IsPDF sniffs the PDF magic bytes.
func IsPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
