package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magicfolder/brain/classify"
)

// Tesseract shells out to the tesseract binary for images and, via
// pdftoppm, for image-only PDFs. Both binaries are optional; the engine
// degrades gracefully when they are missing.
type Tesseract struct {
	tesseractBin string
	pdftoppmBin  string
	maxPages     int
	logger       *slog.Logger
}

// TesseractOption configures the engine.
type TesseractOption func(*Tesseract)

// WithTesseractBinary overrides the tesseract binary path.
func WithTesseractBinary(path string) TesseractOption {
	return func(t *Tesseract) {
		t.tesseractBin = path
	}
}

// WithPdftoppmBinary overrides the pdftoppm binary path.
func WithPdftoppmBinary(path string) TesseractOption {
	return func(t *Tesseract) {
		t.pdftoppmBin = path
	}
}

// WithOCRPageLimit bounds the PDF pages rasterized for OCR.
func WithOCRPageLimit(n int) TesseractOption {
	return func(t *Tesseract) {
		if n > 0 {
			t.maxPages = n
		}
	}
}

// WithOCRLogger sets the logger.
func WithOCRLogger(logger *slog.Logger) TesseractOption {
	return func(t *Tesseract) {
		t.logger = logger
	}
}

// NewTesseract locates the OCR binaries on PATH. A missing tesseract
// binary leaves the engine permanently unavailable, which callers treat
// as "no OCR", not as an error.
func NewTesseract(opts ...TesseractOption) *Tesseract {
	t := &Tesseract{
		maxPages: DefaultPDFPageLimit,
		logger:   slog.Default(),
	}

	if bin, err := exec.LookPath("tesseract"); err == nil {
		t.tesseractBin = bin
	}
	if bin, err := exec.LookPath("pdftoppm"); err == nil {
		t.pdftoppmBin = bin
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.tesseractBin == "" {
		t.logger.Warn("tesseract not found, OCR disabled")
	}
	return t
}

// Available reports whether OCR can run at all.
func (t *Tesseract) Available() bool {
	return t.tesseractBin != ""
}

// ExtractText runs OCR over an image or PDF and returns the recognized text.
func (t *Tesseract) ExtractText(ctx context.Context, path string) (string, error) {
	if !t.Available() {
		return "", nil
	}

	if classify.Ext(path) == ".pdf" {
		return t.extractPDF(ctx, path)
	}
	return t.runTesseract(ctx, path)
}

// extractPDF rasterizes a bounded page prefix with pdftoppm and OCRs each
// page image.
func (t *Tesseract) extractPDF(ctx context.Context, path string) (string, error) {
	if t.pdftoppmBin == "" {
		t.logger.Debug("pdftoppm not found, skipping PDF OCR", slog.String("path", path))
		return "", nil
	}

	tmpDir, err := os.MkdirTemp("", "brain-ocr-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, t.pdftoppmBin,
		"-f", "1",
		"-l", fmt.Sprintf("%d", t.maxPages),
		"-r", "200",
		"-png",
		path, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return "", err
	}
	sort.Strings(pages)

	var sb strings.Builder
	for _, page := range pages {
		text, err := t.runTesseract(ctx, page)
		if err != nil {
			// One bad page should not lose the rest.
			t.logger.Debug("OCR failed for page",
				slog.String("page", page),
				slog.String("error", err.Error()))
			continue
		}
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// runTesseract OCRs a single image to stdout.
func (t *Tesseract) runTesseract(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, t.tesseractBin, path, "stdout")

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
