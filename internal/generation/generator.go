// Package generation provides generative completion providers: an Ollama HTTP
// client and an "unavailable" provider for running without a model.
package generation

import (
	"context"
	"fmt"

	"github.com/rblake2320/multi-agent-rag/internal/config"
)

// Generator produces a completion for an assembled prompt. Implementations
// honor the context deadline; expiry surfaces as models.ErrTimeout, provider
// errors as models.ErrGenerationFailure, and a missing model as
// models.ErrGenerationUnavailable.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

// New creates the generator selected by cfg.Provider.
// Supported providers: "none" (default, degraded retrieval-only mode), "ollama".
func New(cfg *config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case "none", "":
		return &Unavailable{}, nil
	case "ollama":
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: none, ollama)", cfg.Provider)
	}
}
