package embedding

import (
	"context"
	"math"
	"strings"
)

// HashEmbedder is a deterministic bag-of-words feature-hashing embedder.
// Each word is hashed into a bucket of the output vector, so texts sharing
// vocabulary get similar vectors. It needs no model files, which makes it the
// fallback provider when no embedding model is configured, and the test
// double for the pipeline.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder with the given dimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed hashes each word into a bucket, weights signs by a secondary hash to
// reduce collisions canceling out, and unit-normalizes the result.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if word == "" {
			continue
		}
		h := HashString(word)
		bucket := h % e.dimensions
		sign := float32(1)
		if (h/31)%2 == 1 {
			sign = -1
		}
		emb[bucket] += sign
	}
	normalize(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

// normalize scales x in place to unit L2 norm. Zero vectors are unchanged.
func normalize(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}
