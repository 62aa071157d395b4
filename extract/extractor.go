// Package extract turns file paths into best-effort text content.
//
// Extraction is total and non-throwing: unreadable files, unknown
// extensions, and collaborator failures all degrade to empty content. The
// only signal a caller gets is the FileContent.Err field, which exists for
// logging and never fails a classification request.
package extract

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/magicfolder/brain/classify"
)

// defaultMaxBytes caps how much of a file is read for classification.
const defaultMaxBytes = 4 * 1024 * 1024 // 4MB

// FileContent is the extraction result for one path.
type FileContent struct {
	Path    string
	Content string

	// Err records why extraction degraded, for logging only. Content is
	// empty when Err is set.
	Err error
}

// OCREngine is the external OCR collaborator. Unavailability is a normal
// degraded mode: Extract checks Available before dispatching.
type OCREngine interface {
	Available() bool
	ExtractText(ctx context.Context, path string) (string, error)
}

// Extractor dispatches paths to the right extraction strategy based on the
// rule set's extension allow-lists.
type Extractor struct {
	rules    *classify.RuleSet
	ocr      OCREngine
	html     *HTMLConverter
	maxBytes int64
	pdfPages int
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxBytes caps the bytes read from a single file.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithPDFPageLimit bounds the number of PDF pages inspected.
func WithPDFPageLimit(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.pdfPages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor. ocr may be nil when no OCR engine is
// present; OCR candidates then yield empty content.
func NewExtractor(rules *classify.RuleSet, ocr OCREngine, opts ...Option) *Extractor {
	e := &Extractor{
		rules:    rules,
		ocr:      ocr,
		html:     NewHTMLConverter(),
		maxBytes: defaultMaxBytes,
		pdfPages: DefaultPDFPageLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns best-effort text for the path. It never fails: internal
// errors are logged, recorded on the result, and yield empty content.
func (e *Extractor) Extract(ctx context.Context, path string) FileContent {
	fc := FileContent{Path: path}

	switch e.rules.ExtensionClass(path) {
	case classify.ExtText:
		fc.Content, fc.Err = e.extractText(path)
	case classify.ExtOCRCandidate:
		fc.Content, fc.Err = e.extractOCR(ctx, path)
	default:
		// Hard-rule and unknown extensions carry no inspectable content.
		return fc
	}

	if fc.Err != nil {
		e.logger.Debug("extraction degraded to empty content",
			slog.String("path", path),
			slog.String("error", fc.Err.Error()))
		fc.Content = ""
	}
	return fc
}

// extractText reads the file as UTF-8, dropping undecodable bytes.
func (e *Extractor) extractText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, e.maxBytes))
	if err != nil {
		return "", err
	}

	text := strings.ToValidUTF8(string(raw), "")

	switch classify.Ext(path) {
	case ".html", ".htm":
		return e.html.Text(text), nil
	}
	return text, nil
}

// extractOCR routes images and PDFs to the OCR collaborator. PDFs with a
// text layer skip OCR entirely.
func (e *Extractor) extractOCR(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	if classify.Ext(path) == ".pdf" {
		if text := pdfText(path, e.pdfPages, e.logger); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	if e.ocr == nil || !e.ocr.Available() {
		e.logger.Debug("OCR engine unavailable, skipping", slog.String("path", path))
		return "", nil
	}

	return e.ocr.ExtractText(ctx, path)
}
