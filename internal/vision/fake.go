package vision

import "context"

// Test doubles for the engine interfaces.

// FakeQRDecoder returns a canned payload.
type FakeQRDecoder struct {
	Payload string
	Found   bool
	Err     error
}

func (f FakeQRDecoder) Decode(context.Context, []byte) (string, bool, error) {
	return f.Payload, f.Found, f.Err
}

// FakeRasterizer returns canned image bytes.
type FakeRasterizer struct {
	Image []byte
	Err   error
}

func (f FakeRasterizer) RasterizeFirstPage(context.Context, []byte, int) ([]byte, error) {
	return f.Image, f.Err
}

// FakeScoreOCR returns canned lines.
type FakeScoreOCR struct {
	Lines []Line
	Err   error
}

func (f FakeScoreOCR) RecognizeRegion(context.Context, []byte, RegionPx) ([]Line, error) {
	return f.Lines, f.Err
}

var (
	_ QRDecoder     = FakeQRDecoder{}
	_ PDFRasterizer = FakeRasterizer{}
	_ ScoreOCR      = FakeScoreOCR{}
)
