// Package router decides which domain should answer a query.
package router

import (
	"context"
	"fmt"
	"sort"

	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"go.uber.org/zap"
)

// Router scores every registered domain with a pluggable signal and picks
// the best one. A valid domain hint on the query bypasses scoring entirely.
type Router struct {
	registry *registry.Registry
	signal   Signal
	logger   *zap.Logger // optional; when set, logs routing decisions
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a logger for routing decisions.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a router over the given registry and scoring signal.
func New(reg *registry.Registry, signal Signal, opts ...Option) *Router {
	r := &Router{registry: reg, signal: signal}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route picks the domain for q. A hint naming a registered domain wins with
// confidence 1.0; a hint naming an unknown domain falls through to scoring.
// Candidates come back ordered by descending score with lexicographic
// tie-break, so routing never depends on map iteration order. Low confidence
// is reported, not an error.
func (r *Router) Route(ctx context.Context, q *models.Query) (*models.RoutingDecision, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	names := r.registry.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("route query: %w", models.ErrNoDomainsConfigured)
	}
	if q.DomainHint != "" && r.registry.Exists(q.DomainHint) {
		return &models.RoutingDecision{
			Domain:     q.DomainHint,
			Confidence: 1.0,
			Candidates: []models.DomainScore{{Domain: q.DomainHint, Score: 1.0}},
		}, nil
	}

	domains := make([]*registry.Domain, len(names))
	for i, name := range names {
		d, err := r.registry.Get(name)
		if err != nil {
			return nil, err
		}
		domains[i] = d
	}
	scores, err := r.signal.Scores(ctx, domains, q)
	if err != nil {
		return nil, fmt.Errorf("score domains: %w", err)
	}

	candidates := make([]models.DomainScore, len(names))
	for i, name := range names {
		candidates[i] = models.DomainScore{Domain: name, Score: scores[i]}
	}
	// names is lexicographically sorted, so a stable sort on descending
	// score leaves equal-scored domains in lexicographic order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var sum float64
	for _, c := range candidates {
		if c.Score > 0 {
			sum += c.Score
		}
	}
	confidence := 1.0 / float64(len(candidates))
	if sum > 0 {
		confidence = candidates[0].Score / sum
	}

	decision := &models.RoutingDecision{
		Domain:     candidates[0].Domain,
		Confidence: confidence,
		Candidates: candidates,
	}
	if r.logger != nil {
		r.logger.Debug("query routed",
			zap.String("domain", decision.Domain),
			zap.Float64("confidence", decision.Confidence))
	}
	return decision, nil
}
