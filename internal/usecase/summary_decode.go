package usecase

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agenticmap/backend/internal/domain"
)

// Confidence scoring policy. The baseline weight is scaled by response
// completeness; salvaged (non-JSON) responses pay a flat penalty; a
// summary with no title is never trusted above 0.1.
const (
	confidenceBaselineWeight = 0.7
	confidenceModelWeight    = 0.3
	salvagePenalty           = 0.4
	missingTitleCeiling      = 0.1
)

// requiredSummaryFields drive the completeness fraction.
var requiredSummaryFields = []string{
	"title", "price", "best_for_intent", "why_buy",
	"stock_status", "sentiment", "cta_url",
}

var priceLookingRegex = regexp.MustCompile(`[$£€][\d,]*\d+\.?\d*`)

// decodeSummary is the tolerant decode step: best-effort parse with a
// confidence penalty instead of a hard failure. The LLM's output is
// untrusted input — enum values are coerced, missing URLs backfilled from
// the page, and anything unparseable is salvaged from the raw signals.
func decodeSummary(raw, url string, signals *domain.RawSignals) *domain.Summary {
	fields, salvaged := parseSummaryPayload(raw)

	summary := &domain.Summary{
		Title:          stringField(fields, "title"),
		Price:          stringField(fields, "price"),
		PrimaryBenefit: stringField(fields, "primary_benefit"),
		BestForIntent:  stringField(fields, "best_for_intent"),
		WhyBuy:         stringField(fields, "why_buy"),
		StockStatus:    domain.CoerceStockStatus(stringField(fields, "stock_status")),
		TargetAudience: stringField(fields, "target_audience"),
		CTAURL:         stringField(fields, "cta_url"),
		Sentiment:      domain.CoerceSentiment(stringField(fields, "sentiment")),
	}

	if salvaged {
		// Recover what we can from the page itself.
		if summary.Title == "" {
			summary.Title = signals.Title
		}
		if summary.Price == "" {
			if m := priceLookingRegex.FindString(raw); m != "" {
				summary.Price = m
			} else {
				summary.Price = signals.Price
			}
		}
	}

	// A structured-data stock hint beats an LLM guess of unknown.
	if summary.StockStatus == domain.StockUnknown && signals.StockHint != "" {
		summary.StockStatus = domain.CoerceStockStatus(signals.StockHint)
	}

	// Ensure cta_url is populated: first CTA button, else the page URL.
	if summary.CTAURL == "" {
		if len(signals.CTAButtons) > 0 {
			summary.CTAURL = signals.CTAButtons[0].URL
		} else {
			summary.CTAURL = url
		}
	}

	summary.Confidence = scoreConfidence(summary, fields, salvaged)
	return summary
}

// parseSummaryPayload decodes the LLM response as JSON, tolerating
// accidental markdown fences. Returns salvaged=true when the body could
// not be decoded at all.
func parseSummaryPayload(raw string) (map[string]any, bool) {
	cleaned := stripMarkdownFences(raw)

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err == nil {
		return fields, false
	}

	// Second chance: the model wrapped the object in prose. Take the
	// outermost brace pair and retry.
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &fields); err == nil {
			return fields, false
		}
	}

	return map[string]any{}, true
}

func stripMarkdownFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```")
	if idx := strings.Index(cleaned, "```"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	cleaned = strings.TrimPrefix(strings.TrimSpace(cleaned), "json")
	return strings.TrimSpace(cleaned)
}

// stringField reads a field that the model may emit as string, number, or
// null.
func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return ""
	}
}

// scoreConfidence starts from completeness of the required fields, blends
// in the model's self-reported confidence on a clean parse, penalizes
// salvage, and caps hard when the title is missing. Always in [0,1].
func scoreConfidence(summary *domain.Summary, fields map[string]any, salvaged bool) float64 {
	populated := 0
	byField := map[string]string{
		"title":           summary.Title,
		"price":           summary.Price,
		"best_for_intent": summary.BestForIntent,
		"why_buy":         summary.WhyBuy,
		"stock_status":    string(summary.StockStatus),
		"sentiment":       string(summary.Sentiment),
		"cta_url":         summary.CTAURL,
	}
	for _, name := range requiredSummaryFields {
		if byField[name] != "" {
			populated++
		}
	}
	completeness := float64(populated) / float64(len(requiredSummaryFields))

	confidence := confidenceBaselineWeight * completeness
	if !salvaged {
		if reported, ok := fields["confidence"].(float64); ok {
			confidence += confidenceModelWeight * clamp01(reported)
		}
	} else {
		confidence -= salvagePenalty
	}

	if summary.Title == "" && confidence > missingTitleCeiling {
		confidence = missingTitleCeiling
	}
	return clamp01(confidence)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
