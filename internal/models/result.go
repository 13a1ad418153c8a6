package models

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is an ordered set of supporting chunks for one query against
// one domain. Chunks are ordered by descending score, ties broken by chunk ID.
// An empty Chunks slice is the legitimate "no context" case, not a failure.
type RetrievalResult struct {
	Query  string         `json:"query"`
	Domain string         `json:"domain"`
	Chunks []*ScoredChunk `json:"chunks"`
}

// TopScore returns the best similarity score, or 0 for an empty result.
func (r *RetrievalResult) TopScore() float64 {
	if r == nil || len(r.Chunks) == 0 {
		return 0
	}
	return r.Chunks[0].Score
}

// Empty reports whether the retrieval produced no supporting chunks.
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

// Answer is a generated response with provenance. SupportingChunkIDs lists,
// in prompt order, exactly the chunks that made it into the grounded prompt
// after truncation. Grounded is false when the answer was produced without
// any retrieved context; Generated is false when no generative model was
// available and the retrieved context itself is returned as the answer text.
type Answer struct {
	Text               string   `json:"text"`
	Domain             string   `json:"domain"`
	SupportingChunkIDs []string `json:"supporting_chunk_ids"`
	Confidence         float64  `json:"confidence"`
	Grounded           bool     `json:"grounded"`
	Generated          bool     `json:"generated"`
}
