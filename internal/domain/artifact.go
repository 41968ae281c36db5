package domain

import "time"

// AgentMapProduct is one catalog entry in the agent-map artifact: the
// summary fields an agent acts on, plus the confidence it should weigh
// them by.
type AgentMapProduct struct {
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	Price         string      `json:"price,omitempty"`
	BestForIntent string      `json:"best_for_intent"`
	WhyBuy        string      `json:"why_buy"`
	StockStatus   StockStatus `json:"stock_status"`
	Sentiment     Sentiment   `json:"sentiment"`
	CTAURL        string      `json:"cta_url"`
	Confidence    float64     `json:"confidence"`
}

// AgentMap is the structured export artifact, meant for programmatic
// injection into an LLM prompt. Rendering is deterministic: the same
// product set in the same order yields byte-identical JSON.
type AgentMap struct {
	Version      string            `json:"version"`
	ProductCount int               `json:"product_count"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Products     []AgentMapProduct `json:"products"`
}
