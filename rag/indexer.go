package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magicfolder/brain/llm"
)

const (
	// DefaultMinContentLength is the shortest extracted text worth indexing.
	DefaultMinContentLength = 10
	// DefaultSummaryWords caps the stored summary length.
	DefaultSummaryWords = 150
	// fallbackChars is how much raw content stands in for a failed summary.
	fallbackChars = 500
	// summaryInputChars caps how much content the summarizer sees.
	summaryInputChars = 8000
)

// Model is the slice of the LLM client the indexer needs.
type Model interface {
	Available() bool
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer summarizes and embeds classified files into a Store.
type Indexer struct {
	model        Model
	store        Store
	minContent   int
	summaryWords int
	logger       *slog.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithMinContentLength overrides the indexing threshold.
func WithMinContentLength(n int) IndexerOption {
	return func(ix *Indexer) { ix.minContent = n }
}

// WithSummaryWords overrides the summary word cap.
func WithSummaryWords(n int) IndexerOption {
	return func(ix *Indexer) { ix.summaryWords = n }
}

// WithIndexerLogger overrides the default logger.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = logger }
}

// NewIndexer creates an indexer over a model and a store.
func NewIndexer(model Model, store Store, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		model:        model,
		store:        store,
		minContent:   DefaultMinContentLength,
		summaryWords: DefaultSummaryWords,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index summarizes, embeds and stores one file. Files with too little
// extracted text are skipped silently; a missing model is an error because
// the caller asked for indexing it cannot have.
func (ix *Indexer) Index(ctx context.Context, path, content, category string) error {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < ix.minContent {
		ix.logger.Debug("content too short to index",
			slog.String("path", path),
			slog.Int("length", len(trimmed)))
		return nil
	}
	if !ix.model.Available() {
		return fmt.Errorf("no model available for indexing")
	}

	summary := ix.summarize(ctx, trimmed)

	vector, err := ix.model.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed %s: %w", path, err)
	}

	if err := ix.store.Upsert(ctx, Document{
		Path:     path,
		Summary:  summary,
		Category: category,
		Vector:   vector,
	}); err != nil {
		return err
	}

	ix.logger.Info("indexed file",
		slog.String("path", path),
		slog.String("category", category))
	return nil
}

// Remove drops a file from the index.
func (ix *Indexer) Remove(ctx context.Context, path string) error {
	return ix.store.Delete(ctx, path)
}

// summarize asks the model for a short summary and falls back to a raw
// prefix of the content when the model fails or returns nothing.
func (ix *Indexer) summarize(ctx context.Context, content string) string {
	input := content
	if len(input) > summaryInputChars {
		input = input[:summaryInputChars]
	}

	temp := 0.2
	resp, err := ix.model.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(
				"Summarize the following document in at most %d words. Reply with the summary only.", ix.summaryWords)},
			{Role: "user", Content: input},
		},
		Temperature: &temp,
		MaxTokens:   ix.summaryWords * 4,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			ix.logger.Warn("summary failed, storing raw prefix", slog.String("error", err.Error()))
		}
		if len(content) > fallbackChars {
			return content[:fallbackChars]
		}
		return content
	}
	return strings.TrimSpace(resp.Content)
}
