package generation

import (
	"context"
	"fmt"

	"github.com/rblake2320/multi-agent-rag/internal/models"
)

// Unavailable is the generator used when no generative model is configured.
// Every completion reports models.ErrGenerationUnavailable so the pipeline
// degrades to returning retrieved context instead of crashing.
type Unavailable struct{}

// Complete always fails with models.ErrGenerationUnavailable.
func (u *Unavailable) Complete(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("%w: no generative model configured", models.ErrGenerationUnavailable)
}

// Close is a no-op.
func (u *Unavailable) Close() error {
	return nil
}
