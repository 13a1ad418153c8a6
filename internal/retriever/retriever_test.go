package retriever

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/ingest"
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

func newPopulatedRetriever(t *testing.T) (*Retriever, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	if err := reg.Register(newTestDomain(t, "legal")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(newTestDomain(t, "tech")); err != nil {
		t.Fatalf("register: %v", err)
	}
	embedder := embedding.NewHashEmbedder(testDims)
	pipeline := ingest.New(reg, embedder, &config.IngestConfig{ChunkSize: 200, ChunkOverlap: 0})
	_, err := pipeline.Ingest(context.Background(), "legal", []models.Document{
		{SourceID: "statute", Text: "The statute of limitations for fraud claims is six years from discovery."},
		{SourceID: "contract", Text: "A contract requires offer, acceptance, and consideration to be enforceable."},
	})
	if err != nil {
		t.Fatalf("seed ingest: %v", err)
	}
	return New(reg, embedder), reg
}

func TestRetrieveDeterministic(t *testing.T) {
	r, _ := newPopulatedRetriever(t)
	ctx := context.Background()
	q := &models.Query{Text: "statute of limitations for fraud"}

	first, err := r.Retrieve(ctx, "legal", q, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if first.Empty() {
		t.Fatal("no chunks retrieved")
	}
	if first.Chunks[0].Chunk.SourceID != "statute" {
		t.Errorf("top chunk from %q, want statute", first.Chunks[0].Chunk.SourceID)
	}
	for run := 0; run < 5; run++ {
		again, err := r.Retrieve(ctx, "legal", q, 5)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if len(again.Chunks) != len(first.Chunks) {
			t.Fatalf("run %d: %d chunks, want %d", run, len(again.Chunks), len(first.Chunks))
		}
		for i := range again.Chunks {
			if again.Chunks[i].Chunk.ID != first.Chunks[i].Chunk.ID {
				t.Fatalf("run %d: chunk %d = %s, want %s", run, i, again.Chunks[i].Chunk.ID, first.Chunks[i].Chunk.ID)
			}
			if again.Chunks[i].Score != first.Chunks[i].Score {
				t.Fatalf("run %d: chunk %d score differs", run, i)
			}
		}
	}
}

func TestRetrieveHydratesChunks(t *testing.T) {
	r, _ := newPopulatedRetriever(t)
	result, err := r.Retrieve(context.Background(), "legal", &models.Query{Text: "contract offer acceptance"}, 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, sc := range result.Chunks {
		if sc.Chunk.Text == "" {
			t.Errorf("chunk %s has no text", sc.Chunk.ID)
		}
		if sc.Chunk.Domain != "legal" {
			t.Errorf("chunk %s domain = %q", sc.Chunk.ID, sc.Chunk.Domain)
		}
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	r, _ := newPopulatedRetriever(t)
	result, err := r.Retrieve(context.Background(), "tech", &models.Query{Text: "anything"}, 5)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("expected empty result, got %d chunks", len(result.Chunks))
	}
	if result.Domain != "tech" {
		t.Errorf("domain = %q", result.Domain)
	}
}

func TestRetrieveUnknownDomain(t *testing.T) {
	r, _ := newPopulatedRetriever(t)
	_, err := r.Retrieve(context.Background(), "medical", &models.Query{Text: "q"}, 5)
	if !errors.Is(err, models.ErrUnknownDomain) {
		t.Errorf("err = %v, want ErrUnknownDomain", err)
	}
}

func TestRetrieveInvalidArguments(t *testing.T) {
	r, _ := newPopulatedRetriever(t)
	ctx := context.Background()
	if _, err := r.Retrieve(ctx, "legal", &models.Query{}, 5); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := r.Retrieve(ctx, "legal", &models.Query{Text: "q"}, 0); err == nil {
		t.Error("expected error for k = 0")
	}
}

func TestRetrieveRespectsK(t *testing.T) {
	r, _ := newPopulatedRetriever(t)
	result, err := r.Retrieve(context.Background(), "legal", &models.Query{Text: "fraud"}, 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(result.Chunks))
	}
}
