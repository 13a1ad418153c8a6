// Package assembler builds the grounded prompt and produces the final answer.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rblake2320/multi-agent-rag/internal/generation"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"go.uber.org/zap"
)

const groundedInstruction = "Answer the question using only the context below. " +
	"If the context does not contain the answer, say so."

const ungroundedInstruction = "No supporting context was found for this question. " +
	"Answer from general knowledge and say that no source material was available."

// Assembler turns a retrieval result into an answer: it selects the chunks
// that fit the context budget, builds the prompt, and invokes the generation
// provider. Given the same inputs it produces the same prompt.
type Assembler struct {
	generator     generation.Generator
	contextBudget int // runes available for chunk text in the prompt
	logger        *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets a logger for assembly debug output.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// New creates an assembler with the given generation provider and context
// budget in runes.
func New(generator generation.Generator, contextBudget int, opts ...Option) *Assembler {
	if contextBudget <= 0 {
		contextBudget = 6000
	}
	a := &Assembler{generator: generator, contextBudget: contextBudget}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// selectChunks returns the longest prefix of the score-ordered chunks whose
// combined text fits the context budget. Dropping from the tail keeps the
// best-scoring evidence.
func (a *Assembler) selectChunks(res *models.RetrievalResult) []*models.ScoredChunk {
	if res == nil {
		return nil
	}
	included := make([]*models.ScoredChunk, 0, len(res.Chunks))
	used := 0
	for _, sc := range res.Chunks {
		n := utf8.RuneCountInString(sc.Chunk.Text)
		if used+n > a.contextBudget {
			break
		}
		included = append(included, sc)
		used += n
	}
	return included
}

// buildPrompt renders the instruction, numbered context sections, and the
// question into a single prompt string.
func buildPrompt(question string, included []*models.ScoredChunk) string {
	var b strings.Builder
	if len(included) == 0 {
		b.WriteString(ungroundedInstruction)
	} else {
		b.WriteString(groundedInstruction)
		b.WriteString("\n\nContext:\n")
		for i, sc := range included {
			fmt.Fprintf(&b, "\n[%d] %s\n", i+1, sc.Chunk.Text)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")
	return b.String()
}

// Assemble produces the answer for q in the given domain from res. When the
// generation provider reports itself unavailable, the selected context is
// returned verbatim as a degraded answer (Generated=false) with a nil error.
// Other generation errors are fatal for the query.
func (a *Assembler) Assemble(ctx context.Context, q *models.Query, domain string, res *models.RetrievalResult) (*models.Answer, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	included := a.selectChunks(res)
	answer := &models.Answer{
		Domain:             domain,
		SupportingChunkIDs: make([]string, len(included)),
		Grounded:           len(included) > 0,
	}
	for i, sc := range included {
		answer.SupportingChunkIDs[i] = sc.Chunk.ID
	}
	if len(included) > 0 {
		answer.Confidence = included[0].Score
	}

	prompt := buildPrompt(q.Text, included)
	text, err := a.generator.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, models.ErrGenerationUnavailable) {
			if a.logger != nil {
				a.logger.Info("generation unavailable, returning retrieved context",
					zap.String("domain", domain))
			}
			answer.Text = degradedText(included)
			answer.Generated = false
			return answer, nil
		}
		return nil, fmt.Errorf("generate answer for domain %q: %w", domain, err)
	}
	answer.Text = strings.TrimSpace(text)
	answer.Generated = true
	return answer, nil
}

// degradedText joins the selected chunk texts so the caller still gets the
// relevant source material when no generative model is available.
func degradedText(included []*models.ScoredChunk) string {
	if len(included) == 0 {
		return "No supporting context was found and no generative model is available."
	}
	parts := make([]string, len(included))
	for i, sc := range included {
		parts[i] = strings.TrimSpace(sc.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}
