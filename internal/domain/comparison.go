package domain

import "time"

// ComparisonSide is one half of a proof-layer comparison: a single LLM
// answer plus its token cost.
type ComparisonSide struct {
	Answer     string `json:"answer"`
	TokensUsed int    `json:"tokens_used"`
	Label      string `json:"label,omitempty"`
}

// Comparison pairs a baseline answer with a context-injected answer for the
// same question. Both sides are independent LLM invocations of identical
// question text; only the injected catalog differs. Immutable once stored.
type Comparison struct {
	ID             string         `json:"id" db:"id"`
	Question       string         `json:"question" db:"question"`
	WithoutContext ComparisonSide `json:"without_context"`
	WithContext    ComparisonSide `json:"with_context"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
