package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rblake2320/multi-agent-rag/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage("legal", filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	doc := &models.Document{
		SourceID: "doc1",
		Text:     "full text",
		Metadata: map[string]interface{}{"source_path": "/tmp/doc1.txt"},
	}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	got, err := s.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Text != "full text" {
		t.Errorf("text = %q", got.Text)
	}
	if got.Domain != "legal" {
		t.Errorf("domain = %q, want legal", got.Domain)
	}
	if got.Metadata["source_path"] != "/tmp/doc1.txt" {
		t.Errorf("metadata = %v", got.Metadata)
	}

	// Upsert replaces.
	doc.Text = "updated text"
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument update: %v", err)
	}
	got, _ = s.GetDocument(ctx, "doc1")
	if got.Text != "updated text" {
		t.Errorf("after update text = %q", got.Text)
	}
	n, _ := s.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("CountDocuments = %d, want 1", n)
	}
}

func TestGetDocumentMissing(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetDocument(context.Background(), "nope"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestChunkOperations(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	doc := &models.Document{SourceID: "doc1", Text: "text"}
	if err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	chunks := []*models.Chunk{
		{ID: "c0", SourceID: "doc1", Text: "first", Index: 0},
		{ID: "c1", SourceID: "doc1", Text: "second", Index: 1},
	}
	if err := s.BatchUpsertChunks(ctx, chunks); err != nil {
		t.Fatalf("BatchUpsertChunks: %v", err)
	}

	got, err := s.GetChunk(ctx, "c1")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.Text != "second" || got.Index != 1 || got.Domain != "legal" {
		t.Errorf("chunk = %+v", got)
	}

	bySource, err := s.GetChunksBySourceID(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetChunksBySourceID: %v", err)
	}
	if len(bySource) != 2 || bySource[0].Index != 0 || bySource[1].Index != 1 {
		t.Errorf("chunks not ordered by index: %+v", bySource)
	}

	ids, err := s.ChunkIDsBySourceID(ctx, "doc1")
	if err != nil {
		t.Fatalf("ChunkIDsBySourceID: %v", err)
	}
	if len(ids) != 2 || ids[0] != "c0" || ids[1] != "c1" {
		t.Errorf("ids = %v", ids)
	}

	if err := s.DeleteChunksBySourceID(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteChunksBySourceID: %v", err)
	}
	n, _ := s.CountChunks(ctx)
	if n != 0 {
		t.Errorf("CountChunks after delete = %d", n)
	}
}

func TestBatchUpsertChunksReplaces(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	_ = s.UpsertDocument(ctx, &models.Document{SourceID: "doc1", Text: "t"})
	_ = s.BatchUpsertChunks(ctx, []*models.Chunk{{ID: "c0", SourceID: "doc1", Text: "old", Index: 0}})
	_ = s.BatchUpsertChunks(ctx, []*models.Chunk{{ID: "c0", SourceID: "doc1", Text: "new", Index: 0}})
	got, err := s.GetChunk(ctx, "c0")
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if got.Text != "new" {
		t.Errorf("text = %q, want new", got.Text)
	}
	n, _ := s.CountChunks(ctx)
	if n != 1 {
		t.Errorf("CountChunks = %d, want 1", n)
	}
}

func TestStoragePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage("legal", path)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	_ = s.UpsertDocument(ctx, &models.Document{SourceID: "doc1", Text: "survives restart"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStorage("legal", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetDocument after reopen: %v", err)
	}
	if got.Text != "survives restart" {
		t.Errorf("text = %q", got.Text)
	}
}
