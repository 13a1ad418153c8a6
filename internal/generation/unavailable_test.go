package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/models"
)

func TestUnavailableComplete(t *testing.T) {
	g := &Unavailable{}
	_, err := g.Complete(context.Background(), "any prompt")
	if !errors.Is(err, models.ErrGenerationUnavailable) {
		t.Errorf("err = %v, want ErrGenerationUnavailable", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewDefaultsToUnavailable(t *testing.T) {
	g, err := New(&config.GenerationConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := g.(*Unavailable); !ok {
		t.Errorf("default generator = %T, want *Unavailable", g)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(&config.GenerationConfig{Provider: "gpt9"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
