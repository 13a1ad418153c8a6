// Package embedding provides text embedding providers: a deterministic
// hashing embedder, a local ONNX model (CGO), and an Ollama HTTP client.
package embedding

import (
	"context"
	"fmt"

	"github.com/rblake2320/multi-agent-rag/internal/config"
)

// Embedder produces fixed-dimension vector embeddings for text. Embedding is
// a pure function of the text: the same input always yields the same vector,
// and batching must not change results. All vectors are unit-normalized so
// inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New creates the embedder selected by cfg.Provider.
// Supported providers: "hash" (default), "onnx", "ollama".
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "hash", "":
		return NewHashEmbedder(cfg.Dimensions), nil
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "ollama":
		return NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.CacheSize, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, onnx, ollama)", cfg.Provider)
	}
}
