package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldPath      = "path"
	fieldName      = "filename"
	fieldSummary   = "summary"
	fieldCategory  = "category"
	fieldVector    = "vector"
	fieldCreatedAt = "created_at"
)

// RedisStore keeps one hash per document plus a set of indexed paths.
// Similarity is computed client-side over the full index, which is fine at
// the scale of a personal file collection.
type RedisStore struct {
	client *redis.Client
	index  string
	logger *slog.Logger
}

// NewRedisStore creates a store over an established client. index prefixes
// every key so several indexes can share one Redis database.
func NewRedisStore(client *redis.Client, index string, logger *slog.Logger) *RedisStore {
	if index == "" {
		index = "brain"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, index: index, logger: logger}
}

// Ping tests connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) docKey(path string) string {
	return s.index + ":doc:" + path
}

func (s *RedisStore) pathsKey() string {
	return s.index + ":paths"
}

// Upsert stores the document under its path, replacing any previous entry.
func (s *RedisStore) Upsert(ctx context.Context, doc Document) error {
	if doc.Path == "" {
		return fmt.Errorf("document has no path")
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(doc.Path), map[string]interface{}{
			fieldPath:      doc.Path,
			fieldName:      filepath.Base(doc.Path),
			fieldSummary:   doc.Summary,
			fieldCategory:  doc.Category,
			fieldVector:    EncodeVector(doc.Vector),
			fieldCreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
		pipe.SAdd(ctx, s.pathsKey(), doc.Path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", doc.Path, err)
	}

	s.logger.Debug("indexed document",
		slog.String("path", doc.Path),
		slog.Int("dimension", len(doc.Vector)))
	return nil
}

// Delete removes the document for path, if present.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(path))
		pipe.SRem(ctx, s.pathsKey(), path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Query scans the index, scores every document against the query vector
// and returns the topK best matches in descending score order.
func (s *RedisStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	paths, err := s.client.SMembers(ctx, s.pathsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(paths))
	for _, path := range paths {
		fields, err := s.client.HGetAll(ctx, s.docKey(path)).Result()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if len(fields) == 0 {
			// Path set and hash drifted apart; heal the set and move on.
			s.client.SRem(ctx, s.pathsKey(), path)
			continue
		}

		docVec, err := DecodeVector([]byte(fields[fieldVector]))
		if err != nil {
			s.logger.Warn("corrupt vector, skipping",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		matches = append(matches, Match{
			Path:     fields[fieldPath],
			Summary:  fields[fieldSummary],
			Category: fields[fieldCategory],
			Score:    Cosine(vector, docVec),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
