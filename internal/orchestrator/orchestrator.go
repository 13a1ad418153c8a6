// Package orchestrator wires routing, retrieval, and assembly into the
// single-shot answer flow.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rblake2320/multi-agent-rag/internal/assembler"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/retriever"
	"github.com/rblake2320/multi-agent-rag/internal/router"
	"go.uber.org/zap"
)

// Orchestrator runs route, retrieve, assemble for one query. Stages are pure
// with respect to domain state, so a timed-out stage can be retried with the
// same inputs. Concurrent calls are safe; the orchestrator holds no mutable
// state of its own.
type Orchestrator struct {
	router    *router.Router
	retriever *retriever.Retriever
	assembler *assembler.Assembler

	topK                int
	confidenceThreshold float64
	hedgeCandidates     int

	logger *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a logger for per-query flow events.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator. topK is the retrieval depth,
// confidenceThreshold the routing confidence below which hedging kicks in,
// and hedgeCandidates how many top candidate domains hedging probes.
func New(rt *router.Router, rv *retriever.Retriever, as *assembler.Assembler,
	topK int, confidenceThreshold float64, hedgeCandidates int, opts ...Option) *Orchestrator {
	if topK <= 0 {
		topK = 5
	}
	if hedgeCandidates < 2 {
		hedgeCandidates = 2
	}
	o := &Orchestrator{
		router:              rt,
		retriever:           rv,
		assembler:           as,
		topK:                topK,
		confidenceThreshold: confidenceThreshold,
		hedgeCandidates:     hedgeCandidates,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer routes queryText, retrieves supporting chunks, and assembles the
// final answer. The returned string is the domain that actually answered.
// When routing confidence is below the threshold and no hint was given, the
// top candidate domains are probed and the one with the best top-1 retrieval
// similarity answers; the router's nominal pick wins ties and the case where
// every candidate comes back empty. A timed-out retrieval or assembly is
// retried exactly once.
func (o *Orchestrator) Answer(ctx context.Context, queryText, domainHint string) (*models.Answer, string, error) {
	q := &models.Query{Text: queryText, DomainHint: domainHint}
	if err := q.Validate(); err != nil {
		return nil, "", err
	}

	decision, err := o.router.Route(ctx, q)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("after routing: %w", err)
	}

	domain := decision.Domain
	var result *models.RetrievalResult
	if domainHint == "" && decision.Confidence < o.confidenceThreshold && len(decision.Candidates) > 1 {
		domain, result, err = o.hedge(ctx, q, decision)
	} else {
		result, err = o.retrieveWithRetry(ctx, domain, q)
	}
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("after retrieval: %w", err)
	}

	answer, err := o.assembleWithRetry(ctx, q, domain, result)
	if err != nil {
		return nil, "", err
	}
	if o.logger != nil {
		o.logger.Debug("query answered",
			zap.String("domain", domain),
			zap.Int("supporting_chunks", len(answer.SupportingChunkIDs)),
			zap.Bool("generated", answer.Generated))
	}
	return answer, domain, nil
}

// hedge retrieves from the top candidate domains and commits to the one
// whose best hit scores highest. Candidates are probed in the router's
// order, so on equal scores the nominal pick stays in front.
func (o *Orchestrator) hedge(ctx context.Context, q *models.Query, decision *models.RoutingDecision) (string, *models.RetrievalResult, error) {
	n := o.hedgeCandidates
	if n > len(decision.Candidates) {
		n = len(decision.Candidates)
	}
	bestDomain := decision.Domain
	var bestResult *models.RetrievalResult
	bestScore := -1.0
	for _, c := range decision.Candidates[:n] {
		res, err := o.retrieveWithRetry(ctx, c.Domain, q)
		if err != nil {
			return "", nil, err
		}
		if score := res.TopScore(); score > bestScore {
			bestDomain = c.Domain
			bestResult = res
			bestScore = score
		}
	}
	if o.logger != nil && bestDomain != decision.Domain {
		o.logger.Debug("hedge overrode routing",
			zap.String("routed", decision.Domain),
			zap.String("chosen", bestDomain),
			zap.Float64("top_score", bestScore))
	}
	return bestDomain, bestResult, nil
}

func (o *Orchestrator) retrieveWithRetry(ctx context.Context, domain string, q *models.Query) (*models.RetrievalResult, error) {
	res, err := o.retriever.Retrieve(ctx, domain, q, o.topK)
	if err != nil && errors.Is(err, models.ErrTimeout) && ctx.Err() == nil {
		if o.logger != nil {
			o.logger.Warn("retrieval timed out, retrying once", zap.String("domain", domain))
		}
		res, err = o.retriever.Retrieve(ctx, domain, q, o.topK)
	}
	return res, err
}

func (o *Orchestrator) assembleWithRetry(ctx context.Context, q *models.Query, domain string, res *models.RetrievalResult) (*models.Answer, error) {
	answer, err := o.assembler.Assemble(ctx, q, domain, res)
	if err != nil && errors.Is(err, models.ErrTimeout) && ctx.Err() == nil {
		if o.logger != nil {
			o.logger.Warn("generation timed out, retrying once", zap.String("domain", domain))
		}
		answer, err = o.assembler.Assemble(ctx, q, domain, res)
	}
	return answer, err
}
