// Package keyword provides a per-domain keyword (BM25) index used as a
// routing signal and as lexical evidence alongside semantic retrieval.
package keyword

import "context"

// Index defines keyword search operations over one domain's chunks.
type Index interface {
	Index(ctx context.Context, id, text string) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	// DocCount returns the total number of indexed chunks.
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit (ID is a chunk ID).
type Result struct {
	ID    string
	Score float64
}
