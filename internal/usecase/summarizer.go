package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agenticmap/backend/internal/domain"
	"go.uber.org/zap"
)

// indexingSystemPrompt defines what agent-ready product data looks like.
// Every field maps one-to-one onto domain.Summary.
const indexingSystemPrompt = `You are an indexing assistant for an AI shopping agent.
Your job: analyze product page content and extract structured, agent-ready intelligence.

Return ONLY a valid JSON object — no markdown fences, no explanation, no extra text.

Required fields:
{
  "title": "Product name, concise, under 60 chars",
  "price": "Price string like '$29.99', or null if unavailable",
  "primary_benefit": "The single most compelling benefit, one sentence",
  "best_for_intent": "The search intent this product satisfies, e.g. 'budget-friendly skincare for dry skin' or 'high-performance trail running shoes'",
  "why_buy": "Unique selling point in 15 words or fewer — this is what an agent cites",
  "stock_status": "in_stock | out_of_stock | unknown",
  "target_audience": "Who benefits most from this product, specific not generic",
  "cta_url": "The primary buy/checkout URL — must be a real URL string",
  "sentiment": "positive | neutral | negative (based on reviews and tone)",
  "confidence": 0.0 to 1.0 — how confident you are given the data quality
}

Rules:
- why_buy must be 15 words or fewer. Be sharp and specific, not generic ('Great quality!' is bad).
- best_for_intent should read like a search query a shopper would type.
- If price is ambiguous (range, subscription), use the lowest entry price.
- confidence < 0.5 means the page had very little product data.
- Never invent data not present in the input.`

const (
	summaryTemperature = 0.1 // low temp for consistent structured output
	summaryMaxTokens   = 1024
	promptRawTextCap   = 3000
)

// Summarizer turns raw page signals into a structured, confidence-scored
// summary via one LLM call. It writes nothing; the caller persists.
type Summarizer struct {
	chat   domain.ChatClient
	logger *zap.Logger
}

// NewSummarizer creates a summarizer backed by the given chat capability.
func NewSummarizer(chat domain.ChatClient, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{chat: chat, logger: logger}
}

// Summarize invokes the LLM once and decodes its response tolerantly: a
// malformed response is salvaged into a low-confidence summary rather than
// discarded, because a total failure loses all signal even when partial
// information decoded. It fails only when the LLM call itself fails.
func (s *Summarizer) Summarize(ctx context.Context, url string, signals *domain.RawSignals) (*domain.Summary, error) {
	resp, err := s.chat.Complete(ctx, domain.ChatRequest{
		System:      indexingSystemPrompt,
		User:        buildSummaryInput(url, signals),
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", url, err)
	}

	summary := decodeSummary(resp.Content, url, signals)

	s.logger.Info("summarized product",
		zap.String("url", url),
		zap.String("title", summary.Title),
		zap.Float64("confidence", summary.Confidence))

	return summary, nil
}

// buildSummaryInput renders a compact but complete context block. The raw
// page text is capped to bound token cost; the structured fields above it
// carry most of the signal.
func buildSummaryInput(url string, signals *domain.RawSignals) string {
	ctaJSON, _ := json.Marshal(signals.CTAButtons)
	reviewJSON, _ := json.Marshal(signals.ReviewSnippets)

	source := signals.Source
	if source == "" {
		source = "html"
	}
	stockNote := ""
	if signals.StockHint != "" {
		stockNote = fmt.Sprintf("\nStock Status (verified from structured data): %s", signals.StockHint)
	}

	rawText := signals.RawText
	if len(rawText) > promptRawTextCap {
		rawText = rawText[:promptRawTextCap]
	}

	return fmt.Sprintf(`Analyze this product page and return the structured JSON summary.
Data source: %s%s

--- PRODUCT PAGE DATA ---
URL: %s
Title: %s
Price: %s
Description: %s
CTA Buttons: %s
Customer Reviews: %s

Page Content:
%s
--- END DATA ---

Return ONLY the JSON object.`,
		source, stockNote,
		url,
		orNotFound(signals.Title),
		orNotFound(signals.Price),
		orNotFound(signals.Description),
		ctaJSON,
		reviewJSON,
		rawText,
	)
}

func orNotFound(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not found"
	}
	return s
}
