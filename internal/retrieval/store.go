// Package retrieval implements the vector retrieval store spec.md §4.9
// describes, in both an in-memory variant and a persistent pgvector
// variant sharing the same Store contract.
package retrieval

import (
	"context"
	"time"
)

// Item is one retrievable document: its vector plus the metadata spec.md
// §6's persistent DDL tracks.
type Item struct {
	ID            string
	FilePath      string
	FileName      string
	Content       string
	Embedding     []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FileHash      string
	FileSize      int64
	FileExtension string
	Tags          map[string]any
}

// Store is satisfied by both the in-memory and pgvector-backed
// implementations.
type Store interface {
	Upsert(ctx context.Context, item Item) error
	TopK(ctx context.Context, query []float32, k int) ([]Item, error)
}
