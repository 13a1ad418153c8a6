// Package vector provides the per-domain nearest-neighbor index.
package vector

import "context"

// Index defines vector storage and similarity search for one domain.
// Upsert replaces vectors that share an ID, so deterministic chunk IDs make
// re-ingestion idempotent. Search results are ordered by descending score
// with ascending ID as the tie-break, so retrieval is reproducible for a
// fixed index state.
type Index interface {
	Upsert(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	// Centroid returns the mean of all stored vectors, unit-normalized,
	// or nil when the index is empty. Used as the routing signal.
	Centroid() []float32
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit (ID is a chunk ID).
type Result struct {
	ID    string
	Score float64 // Inner product over normalized vectors (cosine similarity).
}
