package models

import "fmt"

// Query is an ephemeral question with an optional domain override.
type Query struct {
	Text       string `json:"query"`
	DomainHint string `json:"domain,omitempty"`
}

// Validate ensures the query has text.
func (q *Query) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// DomainScore is one domain's routing score.
type DomainScore struct {
	Domain string  `json:"domain"`
	Score  float64 `json:"score"`
}

// RoutingDecision is the router's verdict for a query. Candidates are ordered
// by descending score with lexicographic tie-break on domain name, so routing
// is reproducible for a fixed domain state. Confidence is the top score
// normalized over all candidate scores; it is comparable across domains only
// when produced by the same signal.
type RoutingDecision struct {
	Domain     string        `json:"domain"`
	Confidence float64       `json:"confidence"`
	Candidates []DomainScore `json:"candidates"`
}
