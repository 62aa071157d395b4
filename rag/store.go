// Package rag maintains a semantic index over classified files: a short
// summary and an embedding per file, keyed by path, queryable by vector
// similarity.
package rag

import (
	"context"
)

// Document is one indexed file.
type Document struct {
	Path     string
	Summary  string
	Category string
	Vector   []float32
}

// Match is one query hit.
type Match struct {
	Path     string
	Summary  string
	Category string
	Score    float64
}

// Store persists documents and answers similarity queries. Upsert is keyed
// by path: re-indexing a file replaces its previous entry.
type Store interface {
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}
