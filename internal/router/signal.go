package router

import (
	"context"
	"fmt"

	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"github.com/rblake2320/multi-agent-rag/internal/vector"
)

// Signal scores how well each domain matches a query. Implementations must
// be total (a score for every domain, empty ones included) and deterministic
// for a fixed index state. Scores are comparable across domains within one
// call; higher is better.
type Signal interface {
	Scores(ctx context.Context, domains []*registry.Domain, q *models.Query) ([]float64, error)
}

// NewSignal creates the routing signal selected by name.
// Supported signals: "centroid" (default), "keyword".
func NewSignal(name string, embedder embedding.Embedder) (Signal, error) {
	switch name {
	case "centroid", "":
		return NewCentroidSignal(embedder), nil
	case "keyword":
		return &KeywordSignal{}, nil
	default:
		return nil, fmt.Errorf("unknown routing signal: %s (supported: centroid, keyword)", name)
	}
}

// CentroidSignal scores a domain by the cosine similarity between the query
// embedding and the centroid of the domain's vector index. The query is
// embedded once per call; a domain with an empty index scores zero.
type CentroidSignal struct {
	embedder embedding.Embedder
}

// NewCentroidSignal creates a centroid signal over the given embedder.
func NewCentroidSignal(embedder embedding.Embedder) *CentroidSignal {
	return &CentroidSignal{embedder: embedder}
}

// Scores implements Signal.
func (s *CentroidSignal) Scores(ctx context.Context, domains []*registry.Domain, q *models.Query) ([]float64, error) {
	queryVec, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	scores := make([]float64, len(domains))
	for i, d := range domains {
		centroid := d.Index.Centroid()
		if centroid == nil {
			continue
		}
		scores[i] = vector.CosineSimilarity(queryVec, centroid)
	}
	return scores, nil
}

// KeywordSignal scores a domain by its best BM25 hit for the query text,
// squashed to [0,1) so scores stay comparable across domains regardless of
// corpus size. A domain with no hits scores zero.
type KeywordSignal struct{}

// Scores implements Signal.
func (s *KeywordSignal) Scores(ctx context.Context, domains []*registry.Domain, q *models.Query) ([]float64, error) {
	scores := make([]float64, len(domains))
	for i, d := range domains {
		results, err := d.Keywords.Search(ctx, q.Text, 1)
		if err != nil {
			return nil, fmt.Errorf("keyword search in %q: %w", d.Name, err)
		}
		if len(results) == 0 {
			continue
		}
		top := results[0].Score
		scores[i] = top / (1 + top)
	}
	return scores, nil
}
