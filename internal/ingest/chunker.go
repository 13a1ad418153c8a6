// Package ingest provides the ingestion pipeline: deterministic chunking,
// batch embedding, and idempotent upsert into a domain's indices.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rblake2320/multi-agent-rag/internal/models"
)

// chunkNamespace is the fixed UUIDv5 namespace for chunk IDs.
var chunkNamespace = uuid.MustParse("6ba7b815-9dad-11d1-80b4-00c04fd430c8")

// ChunkID returns the deterministic ID for chunk index of sourceID. Same
// document and chunking policy always yield the same IDs, which makes
// re-ingestion replace chunks instead of duplicating them.
func ChunkID(sourceID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", sourceID, index))).String()
}

// Chunker splits text into overlapping fixed-size rune windows. Boundaries
// depend only on the text and the parameters, never on prior state.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given window size and overlap
// (both in runes). Overlap must be smaller than size; otherwise the step
// is clamped to one rune.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits a document's text into Chunks with overlapping windows.
// Whitespace-only text yields no chunks.
func (c *Chunker) Chunk(doc *models.Document) []*models.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}
	runes := []rune(doc.Text)
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	now := time.Now().UTC()
	chunks := make([]*models.Chunk, 0, (len(runes)+step-1)/step)
	index := 0
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, &models.Chunk{
			ID:        ChunkID(doc.SourceID, index),
			SourceID:  doc.SourceID,
			Domain:    doc.Domain,
			Text:      string(runes[i:end]),
			Index:     index,
			Metadata:  doc.Metadata,
			CreatedAt: now,
		})
		index++
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
