// Package pipeline orchestrates one classification request end to end:
// content extraction, heuristic classification, batched escalation of
// uncertain files, and assembly of exactly one result per requested path.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magicfolder/brain/classify"
	"github.com/magicfolder/brain/escalate"
	"github.com/magicfolder/brain/extract"
)

// Result is the final verdict for one requested path.
type Result struct {
	Path     string
	Category classify.Category

	// Err carries a per-file classification failure note. The file still
	// gets a result; other files are unaffected.
	Err string

	// Content is the extracted text, retained for downstream indexing.
	// It is not part of the reply protocol.
	Content string
}

// Pipeline wires the extractor, the heuristic classifier, and the
// escalation collaborator. It holds no per-request state and is safe to
// reuse across requests.
type Pipeline struct {
	extractor  *extract.Extractor
	classifier *classify.Classifier
	escalator  escalate.Classifier
	logger     *slog.Logger
}

// New creates a pipeline. escalator may be nil to disable escalation.
func New(extractor *extract.Extractor, classifier *classify.Classifier, escalator escalate.Classifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:  extractor,
		classifier: classifier,
		escalator:  escalator,
		logger:     logger,
	}
}

// Process classifies a batch of paths. Every distinct input path yields
// exactly one result; duplicate paths within a request are first-wins.
func (p *Pipeline) Process(ctx context.Context, paths []string) []Result {
	seen := make(map[string]bool, len(paths))
	results := make([]Result, 0, len(paths))

	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		results = append(results, p.classifyFile(ctx, path))
	}

	p.escalateUncertain(ctx, results)

	for _, r := range results {
		filesTotal.WithLabelValues(r.Category.String()).Inc()
	}
	return results
}

// classifyFile runs extraction and heuristics for one path. A panic is
// contained to this file: it degrades to Misc with an error note and the
// rest of the batch continues.
func (p *Pipeline) classifyFile(ctx context.Context, path string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("classification panicked",
				slog.String("path", path),
				slog.Any("panic", r))
			fileErrorsTotal.Inc()
			res = Result{
				Path:     path,
				Category: classify.CategoryMisc,
				Err:      fmt.Sprintf("classification failed: %v", r),
			}
		}
	}()

	fc := p.extractor.Extract(ctx, path)
	if fc.Err != nil {
		// Extraction failures degrade to empty content; they are not
		// surfaced on the result.
		p.logger.Debug("extraction failed",
			slog.String("path", path),
			slog.String("error", fc.Err.Error()))
	}

	category := p.classifier.Classify(path, fc.Content)
	return Result{
		Path:     path,
		Category: category,
		Content:  fc.Content,
	}
}

// escalateUncertain batches every Misc result with non-empty trimmed
// content into at most one external call and merges the verdicts back.
// Overrides only ever upgrade a Misc entry; everything else is immune.
func (p *Pipeline) escalateUncertain(ctx context.Context, results []Result) {
	if p.escalator == nil {
		return
	}

	byPath := make(map[string]*Result, len(results))
	var items []escalate.Item
	for i := range results {
		r := &results[i]
		byPath[r.Path] = r
		if r.Category == classify.CategoryMisc && strings.TrimSpace(r.Content) != "" {
			items = append(items, escalate.Item{Path: r.Path, Content: r.Content})
		}
	}
	if len(items) == 0 {
		return
	}

	if !p.escalator.Available() {
		p.logger.Debug("escalation collaborator unavailable, keeping Misc",
			slog.Int("items", len(items)))
		return
	}

	escalationsTotal.Inc()
	overrides, err := p.escalator.ClassifyBatch(ctx, items)
	if err != nil {
		// Best-effort: a failed escalation leaves everything at Misc.
		p.logger.Warn("escalation failed",
			slog.Int("items", len(items)),
			slog.String("error", err.Error()))
		escalationFailuresTotal.Inc()
		return
	}

	for path, override := range overrides {
		r, ok := byPath[path]
		if !ok {
			// Overrides never create new entries.
			continue
		}
		if r.Category != classify.CategoryMisc {
			continue
		}
		p.logger.Debug("override applied",
			slog.String("path", path),
			slog.String("category", override.Category.String()),
			slog.Float64("confidence", override.Confidence),
			slog.String("reason", override.Reason))
		r.Category = override.Category
		overridesAppliedTotal.Inc()
	}
}
