package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/keyword"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"github.com/rblake2320/multi-agent-rag/internal/storage"
	"github.com/rblake2320/multi-agent-rag/internal/vector"
)

const testDims = 64

func newTestDomain(t *testing.T, name string) *registry.Domain {
	t.Helper()
	store, err := storage.NewSQLiteStorage(name, filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	idx, err := vector.NewMemoryIndex(testDims)
	if err != nil {
		t.Fatalf("vector index: %v", err)
	}
	keywords, err := keyword.NewMemoryBleveIndex()
	if err != nil {
		t.Fatalf("keyword index: %v", err)
	}
	d := &registry.Domain{Name: name, Index: idx, Store: store, Keywords: keywords}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newTestPipeline(t *testing.T, embedder embedding.Embedder, domains ...string) (*Pipeline, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	for _, name := range domains {
		if err := reg.Register(newTestDomain(t, name)); err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}
	cfg := &config.IngestConfig{ChunkSize: 100, ChunkOverlap: 20, BatchSize: 2}
	return New(reg, embedder, cfg), reg
}

func TestIngestHappyPath(t *testing.T) {
	p, reg := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	ctx := context.Background()

	report, err := p.Ingest(ctx, "legal", []models.Document{
		{SourceID: "doc1", Text: "The statute of limitations for fraud claims is six years from discovery."},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.DocumentsProcessed != 1 || report.DocumentsSkipped != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.ChunksWritten == 0 {
		t.Error("no chunks written")
	}

	d, _ := reg.Get("legal")
	if d.Index.Size() != report.ChunksWritten {
		t.Errorf("index size %d != chunks written %d", d.Index.Size(), report.ChunksWritten)
	}
	n, _ := d.Store.CountChunks(ctx)
	if int(n) != report.ChunksWritten {
		t.Errorf("stored chunks %d != chunks written %d", n, report.ChunksWritten)
	}
	kwCount, _ := d.Keywords.DocCount()
	if int(kwCount) != report.ChunksWritten {
		t.Errorf("keyword entries %d != chunks written %d", kwCount, report.ChunksWritten)
	}
}

func TestIngestIdempotent(t *testing.T) {
	p, reg := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	ctx := context.Background()
	docs := []models.Document{{SourceID: "doc1", Text: "identical content each time, long enough to produce a couple of chunks when repeated. " +
		"identical content each time, long enough to produce a couple of chunks when repeated."}}

	first, err := p.Ingest(ctx, "legal", docs)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	second, err := p.Ingest(ctx, "legal", docs)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if first.ChunksWritten != second.ChunksWritten {
		t.Errorf("chunk counts differ: %d vs %d", first.ChunksWritten, second.ChunksWritten)
	}

	d, _ := reg.Get("legal")
	if d.Index.Size() != first.ChunksWritten {
		t.Errorf("index size %d after re-ingest, want %d", d.Index.Size(), first.ChunksWritten)
	}
	n, _ := d.Store.CountChunks(ctx)
	if int(n) != first.ChunksWritten {
		t.Errorf("stored chunks %d after re-ingest, want %d", n, first.ChunksWritten)
	}
}

func TestIngestShrinkingDocumentDropsStaleChunks(t *testing.T) {
	p, reg := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	ctx := context.Background()

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "sentence number %d about contract law and obligations. ", i)
	}
	long := models.Document{SourceID: "doc1", Text: sb.String()}
	if _, err := p.Ingest(ctx, "legal", []models.Document{long}); err != nil {
		t.Fatalf("Ingest long: %v", err)
	}

	short := models.Document{SourceID: "doc1", Text: "a single short sentence now."}
	report, err := p.Ingest(ctx, "legal", []models.Document{short})
	if err != nil {
		t.Fatalf("Ingest short: %v", err)
	}

	d, _ := reg.Get("legal")
	if d.Index.Size() != report.ChunksWritten {
		t.Errorf("index size %d, want %d (stale vectors must be removed)", d.Index.Size(), report.ChunksWritten)
	}
	n, _ := d.Store.CountChunks(ctx)
	if int(n) != report.ChunksWritten {
		t.Errorf("stored chunks %d, want %d", n, report.ChunksWritten)
	}
}

func TestIngestSkipsEmptyDocuments(t *testing.T) {
	p, _ := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	report, err := p.Ingest(context.Background(), "legal", []models.Document{
		{SourceID: "empty", Text: "   \n "},
		{SourceID: "real", Text: "actual content"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.DocumentsProcessed != 1 || report.DocumentsSkipped != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].SourceID != "empty" {
		t.Errorf("skipped = %+v", report.Skipped)
	}
}

func TestIngestDomainValidation(t *testing.T) {
	p, _ := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	ctx := context.Background()
	docs := []models.Document{{SourceID: "d", Text: "text"}}

	_, err := p.Ingest(ctx, "not a name", docs)
	if !errors.Is(err, models.ErrInvalidDomain) {
		t.Errorf("invalid name: got %v, want ErrInvalidDomain", err)
	}
	_, err = p.Ingest(ctx, "unregistered", docs)
	if !errors.Is(err, models.ErrUnknownDomain) {
		t.Errorf("unknown domain: got %v, want ErrUnknownDomain", err)
	}
}

// failAfterEmbedder succeeds for the first n EmbedBatch calls, then fails.
type failAfterEmbedder struct {
	inner embedding.Embedder
	calls int
	limit int
}

func (f *failAfterEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.inner.Embed(ctx, text)
}

func (f *failAfterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls > f.limit {
		return nil, fmt.Errorf("provider rejected batch: %w", models.ErrEmbeddingFailure)
	}
	return f.inner.EmbedBatch(ctx, texts)
}

func (f *failAfterEmbedder) Dimensions() int { return f.inner.Dimensions() }
func (f *failAfterEmbedder) Close() error    { return nil }

func TestIngestEmbeddingFailureReturnsPartialReport(t *testing.T) {
	embedder := &failAfterEmbedder{inner: embedding.NewHashEmbedder(testDims), limit: 1}
	p, reg := newTestPipeline(t, embedder, "legal")
	ctx := context.Background()

	report, err := p.Ingest(ctx, "legal", []models.Document{
		{SourceID: "ok", Text: "first document embeds fine"},
		{SourceID: "broken", Text: "second document hits the failing provider"},
	})
	if !errors.Is(err, models.ErrEmbeddingFailure) {
		t.Fatalf("err = %v, want ErrEmbeddingFailure", err)
	}
	if report == nil {
		t.Fatal("partial report missing")
	}
	if report.DocumentsProcessed != 1 {
		t.Errorf("DocumentsProcessed = %d, want 1", report.DocumentsProcessed)
	}
	// The first document's chunks stay committed.
	d, _ := reg.Get("legal")
	if d.Index.Size() == 0 {
		t.Error("committed chunks were lost")
	}
}

func TestIngestPath(t *testing.T) {
	p, reg := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "contract.txt"), []byte("this agreement is governed by the laws of the state"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), []byte{0x89, 0x50}, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	report, err := p.IngestPath(ctx, "legal", dir)
	if err != nil {
		t.Fatalf("IngestPath: %v", err)
	}
	if report.DocumentsProcessed != 1 {
		t.Errorf("DocumentsProcessed = %d, want 1", report.DocumentsProcessed)
	}
	if report.DocumentsSkipped != 1 {
		t.Errorf("DocumentsSkipped = %d, want 1 (unsupported extension)", report.DocumentsSkipped)
	}

	// Re-ingesting the same directory replaces, never duplicates.
	d, _ := reg.Get("legal")
	before := d.Index.Size()
	if _, err := p.IngestPath(ctx, "legal", dir); err != nil {
		t.Fatalf("second IngestPath: %v", err)
	}
	if d.Index.Size() != before {
		t.Errorf("index grew from %d to %d on re-ingest", before, d.Index.Size())
	}
}

func TestPathSourceIDStable(t *testing.T) {
	a := PathSourceID("/data/legal/contract.txt")
	b := PathSourceID("/data/legal/contract.txt")
	if a != b {
		t.Error("same path gave different IDs")
	}
	if PathSourceID("/data/legal/other.txt") == a {
		t.Error("different paths gave the same ID")
	}
	if PathSourceID("/data/legal//contract.txt") != a {
		t.Error("path cleaning should normalize redundant separators")
	}
}

func TestRemoveSource(t *testing.T) {
	p, reg := newTestPipeline(t, embedding.NewHashEmbedder(testDims), "legal")
	ctx := context.Background()
	if _, err := p.Ingest(ctx, "legal", []models.Document{{SourceID: "doc1", Text: "to be removed"}}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := p.RemoveSource(ctx, "legal", "doc1"); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}
	d, _ := reg.Get("legal")
	if d.Index.Size() != 0 {
		t.Errorf("index size = %d after removal", d.Index.Size())
	}
	n, _ := d.Store.CountChunks(ctx)
	if n != 0 {
		t.Errorf("stored chunks = %d after removal", n)
	}
	if _, err := d.Store.GetDocument(ctx, "doc1"); err == nil {
		t.Error("document still present after removal")
	}
}
