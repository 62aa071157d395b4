// Package search answers natural-language queries against the semantic
// index and materializes the hits as a directory of symlinks, so any file
// browser can show the result set without copying files around.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/magicfolder/brain/rag"
)

const (
	// DefaultTopK is how many candidates the index returns per query.
	DefaultTopK = 20
	// DefaultThreshold drops matches scoring below it.
	DefaultThreshold = 0.4
	// maxDirNameChars caps the sanitized query used as the result dir name.
	maxDirNameChars = 50
)

// Embedder is the slice of the LLM client the searcher needs.
type Embedder interface {
	Available() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is one answered query.
type Result struct {
	// Matches are the hits above the threshold, best first.
	Matches []rag.Match
	// Dir is the directory of symlinks, empty when no links were made.
	Dir string
}

// Searcher runs similarity queries over a rag.Store.
type Searcher struct {
	embedder  Embedder
	store     rag.Store
	topK      int
	threshold float64
	baseDir   string
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithTopK overrides the candidate count.
func WithTopK(k int) Option {
	return func(s *Searcher) { s.topK = k }
}

// WithThreshold overrides the score cutoff.
func WithThreshold(t float64) Option {
	return func(s *Searcher) { s.threshold = t }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// New creates a searcher. baseDir is where per-query result directories
// are created.
func New(embedder Embedder, store rag.Store, baseDir string, opts ...Option) *Searcher {
	s := &Searcher{
		embedder:  embedder,
		store:     store,
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		baseDir:   baseDir,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds the query, collects matches above the threshold and links
// the surviving files into a fresh result directory. Files that vanished
// since indexing are skipped, not errors.
func (s *Searcher) Search(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if !s.embedder.Available() {
		return nil, fmt.Errorf("no model available for search")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.store.Query(ctx, vector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	matches := candidates[:0:0]
	for _, m := range candidates {
		if m.Score >= s.threshold {
			matches = append(matches, m)
		}
	}

	s.logger.Info("search",
		slog.String("query", query),
		slog.Int("candidates", len(candidates)),
		slog.Int("matches", len(matches)))

	if len(matches) == 0 {
		return &Result{}, nil
	}

	dir, err := s.materialize(query, matches)
	if err != nil {
		return nil, err
	}
	return &Result{Matches: matches, Dir: dir}, nil
}

// materialize recreates the per-query directory and links each match into
// it. Name collisions get a numeric suffix before the extension.
func (s *Searcher) materialize(query string, matches []rag.Match) (string, error) {
	dir := filepath.Join(s.baseDir, sanitizeDirName(query))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear result dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create result dir: %w", err)
	}

	used := make(map[string]int)
	linked := 0
	for _, m := range matches {
		if _, err := os.Stat(m.Path); err != nil {
			s.logger.Debug("indexed file is gone, skipping",
				slog.String("path", m.Path))
			continue
		}

		name := filepath.Base(m.Path)
		used[name]++
		if n := used[name]; n > 1 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
		}

		if err := os.Symlink(m.Path, filepath.Join(dir, name)); err != nil {
			s.logger.Warn("symlink failed",
				slog.String("path", m.Path),
				slog.String("error", err.Error()))
			continue
		}
		linked++
	}

	if linked == 0 {
		return "", nil
	}
	return dir, nil
}

// sanitizeDirName turns a free-form query into a safe directory name:
// alphanumerics kept, everything else collapsed to single underscores,
// capped in length.
func sanitizeDirName(query string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(query) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	name := strings.Trim(b.String(), "_")
	if len(name) > maxDirNameChars {
		name = strings.Trim(name[:maxDirNameChars], "_")
	}
	if name == "" {
		name = "results"
	}
	return name
}
