package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rblake2320/multi-agent-rag/internal/models"
)

// OllamaEmbedder produces embeddings via the Ollama HTTP API
// (e.g. nomic-embed-text). Responses are unit-normalized so inner product
// search over the index equals cosine similarity.
type OllamaEmbedder struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	cache   *Cache
	// dimensions is learned from the first successful response; atomic
	// because concurrent queries may race the first call.
	dimensions atomic.Int32
}

// NewOllamaEmbedder creates an Ollama embeddings client. The dimension is
// learned from the first successful response.
func NewOllamaEmbedder(baseURL, model string, cacheSize int, timeout time.Duration) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
		cache:   NewCache(cacheSize),
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed requests an embedding for text, using the cache when available.
// Deadline expiry surfaces as models.ErrTimeout, provider errors as
// models.ErrEmbeddingFailure.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrEmbeddingFailure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", models.ErrEmbeddingFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding did not respond within %s", models.ErrTimeout, e.timeout)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", models.ErrEmbeddingFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrEmbeddingFailure, resp.StatusCode, string(body))
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", models.ErrEmbeddingFailure, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", models.ErrEmbeddingFailure)
	}

	emb := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		emb[i] = float32(v)
	}
	normalize(emb)
	e.dimensions.CompareAndSwap(0, int32(len(emb)))
	e.cache.Set(text, emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text. The API is per-prompt, so batching is
// a client-side loop and cannot change the resulting vectors.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension (0 until the first call).
func (e *OllamaEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Close is a no-op for OllamaEmbedder.
func (e *OllamaEmbedder) Close() error {
	return nil
}
