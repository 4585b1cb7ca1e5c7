package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/jpeg"

	"github.com/olympiadqr/backend/internal/domain"
)

// The production engines shell out to the usual scanning toolchain:
// zbarimg for QR decoding, pdftoppm for rasterising and tesseract for
// digit recognition. Tesseract applies its own Otsu binarisation to
// the cropped region.

// ZBarDecoder decodes QR codes with zbarimg.
type ZBarDecoder struct{}

func (ZBarDecoder) Decode(ctx context.Context, img []byte) (string, bool, error) {
	path, cleanup, err := tempFile(img, "scan-*.png")
	if err != nil {
		return "", false, err
	}
	defer cleanup()

	out, err := exec.CommandContext(ctx, "zbarimg", "--quiet", "--raw", "-Sdisable", "-Sqrcode.enable", path).Output()
	if err != nil {
		// Exit code 4 means no symbol was found.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 4 {
			return "", false, nil
		}
		return "", false, domain.WrapErr(domain.KindRetryableIO, err, "zbarimg failed")
	}
	payload := strings.TrimSpace(string(out))
	if payload == "" {
		return "", false, nil
	}
	// Multiple symbols decode one per line; the sheet QR is the only
	// expected one.
	if i := strings.IndexByte(payload, '\n'); i >= 0 {
		payload = payload[:i]
	}
	return payload, true, nil
}

// PopplerRasterizer renders PDFs with pdftoppm.
type PopplerRasterizer struct{}

func (PopplerRasterizer) RasterizeFirstPage(ctx context.Context, pdf []byte, dpi int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "raster")
	if err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "create temp dir")
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "write temp pdf")
	}
	outPrefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(dpi),
		"-f", "1", "-l", "1", "-singlefile", in, outPrefix)
	if err := cmd.Run(); err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "pdftoppm failed")
	}
	data, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "read rasterised page")
	}
	return data, nil
}

// TesseractOCR crops the score region in-process and recognises digits
// with tesseract's TSV output, which carries per-line confidences.
type TesseractOCR struct{}

func (TesseractOCR) RecognizeRegion(ctx context.Context, img []byte, region RegionPx) ([]Line, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, nil
	}
	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, domain.WrapErr(domain.KindValidation, err, "decode scan image")
	}
	crop := cropRegion(decoded, region)

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "encode crop")
	}
	path, cleanup, err := tempFile(buf.Bytes(), "region-*.png")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := exec.CommandContext(ctx, "tesseract", path, "stdout",
		"--psm", "7", "-c", "tessedit_char_whitelist=0123456789", "tsv").Output()
	if err != nil {
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "tesseract failed")
	}
	return parseTesseractTSV(string(out)), nil
}

// parseTesseractTSV extracts recognised words with their confidences.
// TSV columns: level .. conf(10) text(11); conf -1 marks structure
// rows.
func parseTesseractTSV(out string) []Line {
	var lines []Line
	for _, row := range strings.Split(out, "\n") {
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Confidence: conf / 100})
	}
	return lines
}

func cropRegion(src image.Image, region RegionPx) image.Image {
	bounds := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).
		Intersect(src.Bounds())
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := src.(subImager); ok {
		return s.SubImage(bounds)
	}
	return src
}

func tempFile(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, domain.WrapErr(domain.KindRetryableIO, err, "create temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, domain.WrapErr(domain.KindRetryableIO, err, "write temp file")
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
