package sheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// PDFRenderer writes the sheets as minimal self-contained PDFs: one A4
// page, Helvetica text, the raw token printed both inside the QR
// placeholder frame and as a text line so a sheet stays matchable even
// if the QR print fails.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

func (r *PDFRenderer) RenderAnswerSheet(_ context.Context, data SheetData) ([]byte, error) {
	lines := []textLine{
		{x: 20, y: 20, size: 16, text: data.CompetitionName},
		{x: 20, y: 32, size: 12, text: "Participant: " + data.ParticipantName},
		{x: 20, y: 40, size: 12, text: "School: " + data.School},
		{x: 20, y: 48, size: 12, text: fmt.Sprintf("Variant: %d", data.VariantNumber)},
	}
	if data.RoomName != "" {
		lines = append(lines,
			textLine{x: 20, y: 56, size: 12, text: fmt.Sprintf("Room: %s  Seat: %d", data.RoomName, data.SeatNumber)})
	}
	lines = append(lines,
		textLine{x: 20, y: 275, size: 8, text: "Token: " + data.RawSheetToken},
		textLine{x: DefaultScoreFieldX, y: DefaultScoreFieldY - 3, size: 10, text: "Score:"},
	)
	return renderPage(lines, []rect{
		// QR frame, top-right
		{x: 160, y: 12, w: 40, h: 40},
		// score box the OCR worker crops
		{x: DefaultScoreFieldX, y: DefaultScoreFieldY, w: DefaultScoreFieldWidth, h: DefaultScoreFieldHeight},
	})
}

func (r *PDFRenderer) RenderExtraSheet(_ context.Context, data ExtraSheetData) ([]byte, error) {
	lines := []textLine{
		{x: 20, y: 20, size: 16, text: data.CompetitionName},
		{x: 20, y: 32, size: 12, text: fmt.Sprintf("Extra sheet %d", data.SheetNumber)},
		{x: 20, y: 40, size: 10, text: "Attempt: " + data.AttemptID.String()},
		{x: 20, y: 275, size: 8, text: "Token: " + data.RawSheetToken},
	}
	return renderPage(lines, []rect{{x: 160, y: 12, w: 40, h: 40}})
}

func (r *PDFRenderer) RenderBadges(_ context.Context, badges []Badge) ([]byte, error) {
	badges = GroupBadgesByInstitution(badges)
	cellW := PageWidthMM / BadgeColumns
	cellH := PageHeightMM / BadgeRows

	var pages [][]textLine
	var frames [][]rect
	for i, b := range badges {
		slot := i % BadgesPerPage
		if slot == 0 {
			pages = append(pages, nil)
			frames = append(frames, nil)
		}
		col := slot % BadgeColumns
		row := slot / BadgeColumns
		x := float64(col) * cellW
		y := float64(row) * cellH
		p := len(pages) - 1
		pages[p] = append(pages[p],
			textLine{x: x + 4, y: y + 10, size: 10, text: b.ParticipantName},
			textLine{x: x + 4, y: y + 17, size: 8, text: b.Institution},
			textLine{x: x + 4, y: y + cellH - 5, size: 6, text: b.RawEntryToken},
		)
		frames[p] = append(frames[p], rect{x: x + 2, y: y + 2, w: cellW - 4, h: cellH - 4})
	}
	if len(pages) == 0 {
		pages = append(pages, nil)
		frames = append(frames, nil)
	}
	return renderPages(pages, frames)
}

var _ Renderer = (*PDFRenderer)(nil)

// Minimal PDF writer. Coordinates come in as millimetres from the
// top-left corner and convert to PDF points from the bottom-left.

type textLine struct {
	x, y float64 // mm
	size float64 // pt
	text string
}

type rect struct {
	x, y, w, h float64 // mm
}

const mmToPt = 72.0 / 25.4

func renderPage(lines []textLine, frames []rect) ([]byte, error) {
	return renderPages([][]textLine{lines}, [][]rect{frames})
}

func renderPages(pages [][]textLine, frames [][]rect) ([]byte, error) {
	pageW := PageWidthMM * mmToPt
	pageH := PageHeightMM * mmToPt

	var contents []string
	for p := range pages {
		var b strings.Builder
		for _, l := range pages[p] {
			x := l.x * mmToPt
			y := pageH - l.y*mmToPt
			fmt.Fprintf(&b, "BT /F1 %.1f Tf %.2f %.2f Td (%s) Tj ET\n", l.size, x, y, escapePDF(l.text))
		}
		for _, r := range frames[p] {
			x := r.x * mmToPt
			y := pageH - (r.y+r.h)*mmToPt
			fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re S\n", x, y, r.w*mmToPt, r.h*mmToPt)
		}
		contents = append(contents, b.String())
	}

	// Objects: 1 catalog, 2 pages, 3 font, then per page: page object
	// and content stream.
	var objs []string
	kids := make([]string, len(contents))
	for i := range contents {
		pageObj := 4 + i*2
		kids[i] = fmt.Sprintf("%d 0 R", pageObj)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(contents)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, content := range contents {
		contentObj := 5 + i*2
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				pageW, pageH, contentObj),
			fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs)+1)
	for i, obj := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes(), nil
}

func escapePDF(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "(", "\\(")
	s = strings.ReplaceAll(s, ")", "\\)")
	return s
}
