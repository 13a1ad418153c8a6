package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rblake2320/multi-agent-rag/internal/models"
)

// OllamaGenerator produces completions via the Ollama HTTP chat API.
type OllamaGenerator struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	client      *http.Client
}

// NewOllamaGenerator creates an Ollama completion client.
func NewOllamaGenerator(baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) *OllamaGenerator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaGenerator{
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		client:      &http.Client{},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Complete sends the prompt as a single user message and returns the reply.
// A 404 from Ollama (model not pulled) reports as models.ErrGenerationUnavailable
// so callers can fall into the degraded retrieval-only path.
func (o *OllamaGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if o.model == "" {
		return "", fmt.Errorf("%w: no model name configured", models.ErrGenerationUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	opts := &ollamaOptions{Temperature: o.temperature}
	if o.maxTokens > 0 {
		opts.NumPredict = o.maxTokens
	}
	payload, err := json.Marshal(ollamaChatRequest{
		Model:    o.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", models.ErrGenerationFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", models.ErrGenerationFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: generation did not respond within %s", models.ErrTimeout, o.timeout)
		}
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", models.ErrGenerationFailure, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: model %q not available: %s", models.ErrGenerationUnavailable, o.model, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", models.ErrGenerationFailure, resp.StatusCode, string(body))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", models.ErrGenerationFailure, err)
	}
	return out.Message.Content, nil
}

// Close is a no-op for OllamaGenerator.
func (o *OllamaGenerator) Close() error {
	return nil
}
