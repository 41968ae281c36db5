package domain

import "time"

// StockStatus is the availability state reported in a product summary.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
	StockUnknown    StockStatus = "unknown"
)

// Sentiment is the overall review/tone signal reported in a product summary.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// CoerceStockStatus maps arbitrary LLM output onto the StockStatus enum.
// Anything unrecognized becomes StockUnknown.
func CoerceStockStatus(s string) StockStatus {
	switch StockStatus(s) {
	case StockInStock, StockOutOfStock, StockUnknown:
		return StockStatus(s)
	}
	return StockUnknown
}

// CoerceSentiment maps arbitrary LLM output onto the Sentiment enum.
// Anything unrecognized becomes SentimentNeutral.
func CoerceSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return Sentiment(s)
	}
	return SentimentNeutral
}

// CTAButton is a call-to-action link found on a product page.
type CTAButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// RawSignals is the cleaned text bundle extracted from a fetched page,
// pre-LLM. Retained on the product for re-scrape diffing.
type RawSignals struct {
	Title          string      `json:"title"`
	Price          string      `json:"price,omitempty"`
	Description    string      `json:"description,omitempty"`
	CTAButtons     []CTAButton `json:"cta_buttons"`
	ReviewSnippets []string    `json:"review_snippets"`
	RawText        string      `json:"raw_text,omitempty"`
	Source         string      `json:"source,omitempty"`     // "jsonld" or "html"
	StockHint      string      `json:"stock_hint,omitempty"` // availability verified from structured data
}

// Summary is the structured, agent-ready record produced by the LLM step.
type Summary struct {
	Title          string      `json:"title"`
	Price          string      `json:"price,omitempty"`
	PrimaryBenefit string      `json:"primary_benefit,omitempty"`
	BestForIntent  string      `json:"best_for_intent"`
	WhyBuy         string      `json:"why_buy"`
	StockStatus    StockStatus `json:"stock_status"`
	TargetAudience string      `json:"target_audience,omitempty"`
	CTAURL         string      `json:"cta_url"`
	Sentiment      Sentiment   `json:"sentiment"`
	Confidence     float64     `json:"confidence"`
}

// Product is a single indexed product page. URL is the canonical dedup key
// after normalization; a stored product always carries a fully populated
// Summary or none at all.
type Product struct {
	ID            string     `json:"id" db:"id"`
	URL           string     `json:"url" db:"url"`
	NormalizedURL string     `json:"-" db:"normalized_url"`
	RawSignals    RawSignals `json:"raw_signals"`
	Summary       *Summary   `json:"summary"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Stale reports whether the product's summary confidence has fallen below
// the given threshold and the product warrants a re-scrape.
func (p *Product) Stale(threshold float64) bool {
	if p.Summary == nil {
		return true
	}
	return p.Summary.Confidence < threshold
}

// FetchedPage is an already-fetched page handed to the extractor. Fetching
// itself (redirects, bot challenges, retries) is the fetcher's problem.
type FetchedPage struct {
	URL        string
	HTML       string
	StatusCode int
}
