package domain

import (
	"context"
	"time"
)

// ProductRepository defines persistence for indexed products. Upsert is
// keyed by NormalizedURL: replace-or-insert must be atomic so no partially
// written summary is ever visible.
type ProductRepository interface {
	Upsert(ctx context.Context, product *Product) (*Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByNormalizedURL(ctx context.Context, normalizedURL string) (*Product, error)
	// List returns all products ordered by created_at ascending, id ascending.
	List(ctx context.Context) ([]*Product, error)
	Delete(ctx context.Context, id string) error
}

// ComparisonRepository defines persistence for proof-layer comparisons.
type ComparisonRepository interface {
	Save(ctx context.Context, comparison *Comparison) error
	// List returns the most recent comparisons first, at most limit entries.
	List(ctx context.Context, limit int) ([]*Comparison, error)
}

// ArtifactCache caches generated export artifacts (llms.txt) between
// generation calls.
type ArtifactCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PageFetcher fetches a product page. Implementations own anti-bot
// handling, redirects and timeouts; the pipeline only sees the result.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedPage, error)
}

// SignalExtractor turns a fetched page into cleaned raw signals.
type SignalExtractor interface {
	Extract(page *FetchedPage) (*RawSignals, error)
}

// ChatRequest is a single chat-completion invocation.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the text and token cost of a completed chat invocation.
type ChatResponse struct {
	Content    string
	TokensUsed int
}

// ChatClient is the external LLM capability.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
