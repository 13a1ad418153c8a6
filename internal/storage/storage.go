// Package storage defines the persistence interface for documents and chunks.
package storage

import (
	"context"

	"github.com/rblake2320/multi-agent-rag/internal/models"
)

// Storage persists the documents and chunks of a single domain. What a query
// reads is what was last successfully upserted; persisted state survives
// process restart. Chunk embeddings are persisted by the vector index, not
// here.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, sourceID string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, sourceID string) error

	// Chunk operations
	BatchUpsertChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksBySourceID(ctx context.Context, sourceID string) ([]*models.Chunk, error)
	ChunkIDsBySourceID(ctx context.Context, sourceID string) ([]string, error)
	DeleteChunksBySourceID(ctx context.Context, sourceID string) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
