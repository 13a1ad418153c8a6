package models

import "fmt"

// SkippedDocument records a document that ingestion could not process.
type SkippedDocument struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// IngestReport summarizes one ingestion batch for a single domain.
type IngestReport struct {
	Domain             string            `json:"domain"`
	DocumentsProcessed int               `json:"documents_processed"`
	DocumentsSkipped   int               `json:"documents_skipped"`
	ChunksWritten      int               `json:"chunks_written"`
	Skipped            []SkippedDocument `json:"skipped,omitempty"`
}

// String renders a one-line human-readable summary.
func (r *IngestReport) String() string {
	s := fmt.Sprintf("ingested %d chunks from %d documents into domain %q",
		r.ChunksWritten, r.DocumentsProcessed, r.Domain)
	if r.DocumentsSkipped > 0 {
		s += fmt.Sprintf(" (%d skipped)", r.DocumentsSkipped)
	}
	return s
}
