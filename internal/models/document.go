// Package models defines core data structures for documents, chunks, queries,
// routing decisions, and answers.
package models

import "time"

// Document is a raw source unit bound to a single domain. It is immutable
// once chunked; re-ingesting the same SourceID replaces its chunks.
type Document struct {
	SourceID  string                 `json:"source_id" db:"source_id"`
	Domain    string                 `json:"domain" db:"domain"`
	Text      string                 `json:"text" db:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Chunk is a contiguous slice of a Document, the unit of embedding and
// retrieval. ID is derived deterministically from SourceID and Index so the
// same document and chunking policy always produce the same IDs.
type Chunk struct {
	ID        string                 `json:"id" db:"id"`
	SourceID  string                 `json:"source_id" db:"source_id"`
	Domain    string                 `json:"domain" db:"domain"`
	Text      string                 `json:"text" db:"text"`
	Index     int                    `json:"chunk_index" db:"chunk_index"`
	Embedding []float32              `json:"-" db:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// DocumentInput is the wire form for submitting a document for ingestion.
type DocumentInput struct {
	SourceID string                 `json:"source_id,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
