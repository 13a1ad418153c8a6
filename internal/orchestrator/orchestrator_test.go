package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rblake2320/multi-agent-rag/internal/assembler"
	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/generation"
	"github.com/rblake2320/multi-agent-rag/internal/ingest"
	"github.com/rblake2320/multi-agent-rag/internal/keyword"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"github.com/rblake2320/multi-agent-rag/internal/retriever"
	"github.com/rblake2320/multi-agent-rag/internal/router"
	"github.com/rblake2320/multi-agent-rag/internal/storage"
	"github.com/rblake2320/multi-agent-rag/internal/vector"
)

const testDims = 128

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

// countingGenerator fails the first failures calls with errs, then echoes.
type countingGenerator struct {
	calls    int
	failures int
	err      error
	reply    string
}

func (g *countingGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", g.err
	}
	return g.reply, nil
}

func (g *countingGenerator) Close() error { return nil }

// newTestStack builds a full pipeline over the given domains, seeds them, and
// returns an orchestrator using gen for assembly.
func newTestStack(t *testing.T, gen generation.Generator, threshold float64) *Orchestrator {
	t.Helper()
	reg := registry.New()
	for _, name := range []string{"legal", "tech"} {
		if err := reg.Register(newTestDomain(t, name)); err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}
	embedder := embedding.NewHashEmbedder(testDims)
	pipeline := ingest.New(reg, embedder, &config.IngestConfig{ChunkSize: 300, ChunkOverlap: 0})
	ctx := context.Background()
	if _, err := pipeline.Ingest(ctx, "legal", []models.Document{
		{SourceID: "statutes", Text: "The statute of limitations for fraud claims is six years from the date of discovery of the fraud."},
		{SourceID: "contracts", Text: "A valid contract requires offer, acceptance, and consideration between the parties."},
	}); err != nil {
		t.Fatalf("seed legal: %v", err)
	}
	if _, err := pipeline.Ingest(ctx, "tech", []models.Document{
		{SourceID: "concurrency", Text: "Goroutines communicate over channels and the scheduler multiplexes them onto threads."},
	}); err != nil {
		t.Fatalf("seed tech: %v", err)
	}

	rt := router.New(reg, router.NewCentroidSignal(embedder))
	rv := retriever.New(reg, embedder)
	as := assembler.New(gen, 6000)
	return New(rt, rv, as, 5, threshold, 2)
}

func TestAnswerEndToEnd(t *testing.T) {
	gen := &countingGenerator{reply: "Six years from discovery."}
	o := newTestStack(t, gen, 0)

	answer, domain, err := o.Answer(context.Background(), "What is the statute of limitations for fraud claims?", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if domain != "legal" {
		t.Errorf("answered from %q, want legal", domain)
	}
	if !answer.Grounded || !answer.Generated {
		t.Errorf("grounded = %v, generated = %v", answer.Grounded, answer.Generated)
	}
	if len(answer.SupportingChunkIDs) == 0 {
		t.Error("no supporting chunks")
	}
	if answer.Text != "Six years from discovery." {
		t.Errorf("text = %q", answer.Text)
	}
}

func TestAnswerHonorsDomainHint(t *testing.T) {
	gen := &countingGenerator{reply: "answer"}
	o := newTestStack(t, gen, 0)

	_, domain, err := o.Answer(context.Background(), "What is the statute of limitations for fraud claims?", "tech")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if domain != "tech" {
		t.Errorf("answered from %q, want hinted tech", domain)
	}
}

func TestAnswerDegradedWithoutGenerator(t *testing.T) {
	o := newTestStack(t, &generation.Unavailable{}, 0)

	answer, _, err := o.Answer(context.Background(), "What is the statute of limitations for fraud claims?", "legal")
	if err != nil {
		t.Fatalf("degraded flow must not error: %v", err)
	}
	if answer.Generated {
		t.Error("Generated should be false without a model")
	}
	if !strings.Contains(answer.Text, "statute of limitations") {
		t.Errorf("degraded answer should carry the retrieved context, got %q", answer.Text)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	o := newTestStack(t, &countingGenerator{reply: "x"}, 0)
	if _, _, err := o.Answer(context.Background(), "", ""); err == nil {
		t.Error("expected validation error")
	}
}

func TestAnswerRetriesTimedOutGeneration(t *testing.T) {
	gen := &countingGenerator{
		failures: 1,
		err:      fmt.Errorf("model slow: %w", models.ErrTimeout),
		reply:    "recovered",
	}
	o := newTestStack(t, gen, 0)

	answer, _, err := o.Answer(context.Background(), "statute of limitations?", "legal")
	if err != nil {
		t.Fatalf("Answer after retry: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator called %d times, want 2 (one retry)", gen.calls)
	}
	if answer.Text != "recovered" {
		t.Errorf("text = %q", answer.Text)
	}
}

func TestAnswerTimeoutRetriedOnlyOnce(t *testing.T) {
	gen := &countingGenerator{
		failures: 2,
		err:      fmt.Errorf("model slow: %w", models.ErrTimeout),
	}
	o := newTestStack(t, gen, 0)

	_, _, err := o.Answer(context.Background(), "statute of limitations?", "legal")
	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout after exhausted retry", err)
	}
	if gen.calls != 2 {
		t.Errorf("generator called %d times, want exactly 2", gen.calls)
	}
}

func TestHedgeOverridesWeakRouting(t *testing.T) {
	reg := registry.New()
	// Lexicographically first, so it is the nominal pick under a zero signal.
	empty := newTestDomain(t, "aa_empty")
	populated := newTestDomain(t, "zz_populated")
	if err := reg.Register(empty); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(populated); err != nil {
		t.Fatalf("register: %v", err)
	}
	embedder := embedding.NewHashEmbedder(testDims)
	pipeline := ingest.New(reg, embedder, &config.IngestConfig{ChunkSize: 300, ChunkOverlap: 0})
	if _, err := pipeline.Ingest(context.Background(), "zz_populated", []models.Document{
		{SourceID: "doc", Text: "The statute of limitations for fraud claims is six years."},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rt := router.New(reg, router.NewCentroidSignal(embedder))
	rv := retriever.New(reg, embedder)
	as := assembler.New(&generation.Unavailable{}, 6000)
	// Threshold above 1 forces hedging on every unhinted query.
	o := New(rt, rv, as, 5, 1.1, 2)

	answer, domain, err := o.Answer(context.Background(), "statute of limitations for fraud", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if domain != "zz_populated" {
		t.Errorf("answered from %q, want zz_populated (hedge should prefer the domain with evidence)", domain)
	}
	if !answer.Grounded {
		t.Error("hedged answer should be grounded")
	}
}

func TestHedgeNominalPickWinsWhenAllEmpty(t *testing.T) {
	reg := registry.New()
	for _, name := range []string{"aa", "bb"} {
		if err := reg.Register(newTestDomain(t, name)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	embedder := embedding.NewHashEmbedder(testDims)
	rt := router.New(reg, router.NewCentroidSignal(embedder))
	rv := retriever.New(reg, embedder)
	as := assembler.New(&generation.Unavailable{}, 6000)
	o := New(rt, rv, as, 5, 1.1, 2)

	answer, domain, err := o.Answer(context.Background(), "anything at all", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if domain != "aa" {
		t.Errorf("answered from %q, want the router's nominal pick aa", domain)
	}
	if answer.Grounded {
		t.Error("answer over empty domains cannot be grounded")
	}
}
