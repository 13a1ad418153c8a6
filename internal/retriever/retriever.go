// Package retriever performs semantic top-k retrieval against one domain.
package retriever

import (
	"context"
	"fmt"

	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"go.uber.org/zap"
)

// Retriever embeds a query and returns the k nearest chunks from a domain's
// vector index, hydrated with text and metadata from storage. It never
// writes; concurrent retrievals are safe.
type Retriever struct {
	registry *registry.Registry
	embedder embedding.Embedder
	logger   *zap.Logger // optional
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for retrieval debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a retriever over the given registry and embedder. The embedder
// must be the same one used at ingestion so query and chunk vectors share a
// space.
func New(reg *registry.Registry, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{registry: reg, embedder: embedder}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k chunks from domain ordered by descending
// similarity, ties broken by chunk ID. An empty or sparsely populated index
// yields a short or empty result with a nil error; an unknown domain is an
// error. Results are deterministic for a fixed index state.
func (r *Retriever) Retrieve(ctx context.Context, domain string, q *models.Query, k int) (*models.RetrievalResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("retrieve from %q: k must be positive, got %d", domain, k)
	}
	d, err := r.registry.Get(domain)
	if err != nil {
		return nil, err
	}

	result := &models.RetrievalResult{Query: q.Text, Domain: domain}
	if d.Index.Size() == 0 {
		return result, nil
	}

	queryVec, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query for %q: %w", domain, err)
	}
	hits, err := d.Index.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search in %q: %w", domain, err)
	}

	result.Chunks = make([]*models.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := d.Store.GetChunk(ctx, hit.ID)
		if err != nil {
			// The vector index can briefly lead storage during an
			// in-flight re-ingestion; skip rather than fail the query.
			if r.logger != nil {
				r.logger.Warn("chunk missing from storage",
					zap.String("domain", domain),
					zap.String("chunk_id", hit.ID))
			}
			continue
		}
		result.Chunks = append(result.Chunks, &models.ScoredChunk{Chunk: chunk, Score: hit.Score})
	}
	return result, nil
}
