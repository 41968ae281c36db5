package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agenticmap/backend/internal/domain"
	"go.uber.org/zap"
)

// Field caps bound downstream LLM token cost.
const (
	maxTitleLen       = 200
	maxPriceLen       = 40
	maxDescriptionLen = 500
	maxReviewLen      = 300
	maxReviews        = 5
	maxCTAButtons     = 5
	maxRawTextLen     = 5000
)

// noiseTags carry no product signal and only burn tokens.
var noiseTags = []string{
	"script", "style", "nav", "header", "footer",
	"iframe", "noscript", "aside", "form",
}

var titleSelectors = []string{
	"h1",
	"[itemprop='name']",
	"[class*='product-title']",
	"[class*='product-name']",
	"[class*='product__title']",
	"[class*='ProductTitle']",
}

var priceSelectors = []string{
	"[itemprop='price']",
	"[class*='price--sale']", "[class*='sale-price']",
	"[class*='current-price']", "[class*='product-price']",
	"[class*='price']", "[id*='price']",
	".price", "#price", ".cost",
	"span[class*='Price']",
}

var descriptionSelectors = []string{
	"[itemprop='description']",
	"[class*='product-description']",
	"[class*='product-detail']",
	"[class*='product-body']",
	"[class*='description']",
	".description", "#description",
	"[data-testid*='description']",
}

var reviewSelectors = []string{
	".review-text", ".review-body", ".customer-review",
	"[class*='review-content']", "[class*='testimonial']",
	"[class*='review-text']", "[class*='review-body']",
	"[data-testid*='review']",
}

var ctaKeywords = []string{
	"buy now", "add to cart", "shop now", "get it now",
	"order now", "purchase", "checkout", "add to bag",
	"get yours", "buy today",
}

// Require at least 2 digits so "$9" shoe sizes and ratings don't match.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$[\d,]*\d{2,}\.?\d*`),
	regexp.MustCompile(`USD\s*[\d,]*\d{2,}\.?\d*`),
	regexp.MustCompile(`[\d,]*\d{2,}\.?\d*\s*USD`),
	regexp.MustCompile(`£[\d,]*\d{2,}\.?\d*`),
	regexp.MustCompile(`€[\d,]*\d{2,}\.?\d*`),
	regexp.MustCompile(`Price[:\s]+\$?[\d,]*\d{2,}\.?\d*`),
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Extractor turns an already-fetched page into cleaned raw signals. It is
// a pure transform: no network, no storage.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a signal extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract parses the page and selects the highest-signal fields. JSON-LD
// structured data wins when present; otherwise heuristic HTML selection.
// Returns domain.ErrEmptyContent when neither a usable title nor usable
// price text was found.
func (e *Extractor) Extract(page *domain.FetchedPage) (*domain.RawSignals, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// Layer 1: schema.org Product via JSON-LD. More reliable than HTML
	// heuristics and present before any JS runs.
	if signals := e.extractJSONLD(doc, page.URL); signals != nil {
		e.logger.Debug("extracted via json-ld",
			zap.String("url", page.URL),
			zap.String("title", signals.Title))
		return signals, nil
	}

	// Layer 2: heuristic HTML selection on the de-noised document.
	doc.Find(strings.Join(noiseTags, ", ")).Remove()

	signals := &domain.RawSignals{
		Title:          e.extractTitle(doc),
		Price:          e.extractPrice(doc),
		Description:    extractFirstText(doc, descriptionSelectors, maxDescriptionLen),
		CTAButtons:     e.extractCTAButtons(doc, page.URL),
		ReviewSnippets: e.extractReviews(doc),
		RawText:        cleanText(doc, maxRawTextLen),
		Source:         "html",
	}

	if signals.Title == "" && signals.Price == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyContent, page.URL)
	}
	return signals, nil
}

// jsonldProduct is the subset of schema.org Product we consume.
type jsonldProduct struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       json.RawMessage `json:"brand"`
	Offers      json.RawMessage `json:"offers"`
}

type jsonldOffer struct {
	Price         json.RawMessage `json:"price"`
	LowPrice      json.RawMessage `json:"lowPrice"`
	PriceCurrency string          `json:"priceCurrency"`
	Availability  string          `json:"availability"`
}

// extractJSONLD scans script[type=application/ld+json] blocks for a
// schema.org Product. Handles single objects, arrays, and @graph wrappers.
func (e *Extractor) extractJSONLD(doc *goquery.Document, pageURL string) *domain.RawSignals {
	var result *domain.RawSignals

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		for _, item := range jsonldItems(raw) {
			var product jsonldProduct
			if err := json.Unmarshal(item, &product); err != nil {
				continue
			}
			if product.Type != "Product" && product.Type != "IndividualProduct" {
				continue
			}
			if product.Name == "" {
				continue
			}

			price, stockHint := parseOffer(product.Offers)
			brand := parseBrandName(product.Brand)
			description := truncate(product.Description, maxDescriptionLen)

			var sb strings.Builder
			fmt.Fprintf(&sb, "Product: %s\n", product.Name)
			if brand != "" {
				fmt.Fprintf(&sb, "Brand: %s\n", brand)
			}
			if price != "" {
				fmt.Fprintf(&sb, "Price: %s\n", price)
			}
			fmt.Fprintf(&sb, "Description: %s", description)

			result = &domain.RawSignals{
				Title:          truncate(product.Name, maxTitleLen),
				Price:          price,
				Description:    description,
				CTAButtons:     []domain.CTAButton{{Text: "Buy Now", URL: pageURL}},
				ReviewSnippets: []string{},
				RawText:        truncate(sb.String(), maxRawTextLen),
				Source:         "jsonld",
				StockHint:      stockHint,
			}
			return false
		}
		return true
	})

	return result
}

// jsonldItems flattens a JSON-LD payload into candidate objects, unwrapping
// top-level arrays and @graph containers.
func jsonldItems(raw string) []json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil
		}
		return items
	}

	var wrapper struct {
		Graph []json.RawMessage `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err == nil && len(wrapper.Graph) > 0 {
		return wrapper.Graph
	}
	return []json.RawMessage{json.RawMessage(trimmed)}
}

// parseOffer pulls a display price and stock hint from a schema.org offers
// value, which may be an object or an array of objects.
func parseOffer(raw json.RawMessage) (price, stockHint string) {
	if len(raw) == 0 {
		return "", ""
	}

	var offer jsonldOffer
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var offers []jsonldOffer
		if err := json.Unmarshal(raw, &offers); err != nil || len(offers) == 0 {
			return "", ""
		}
		offer = offers[0]
	} else if err := json.Unmarshal(raw, &offer); err != nil {
		return "", ""
	}

	amount := jsonNumberString(offer.Price)
	if amount == "" {
		amount = jsonNumberString(offer.LowPrice)
	}
	if amount != "" {
		if v, err := strconv.ParseFloat(amount, 64); err == nil {
			symbol := "$"
			if offer.PriceCurrency != "" && offer.PriceCurrency != "USD" {
				symbol = offer.PriceCurrency + " "
			}
			price = strings.TrimSuffix(fmt.Sprintf("%s%.2f", symbol, v), ".00")
		}
	}

	switch {
	case strings.Contains(offer.Availability, "InStock"):
		stockHint = string(domain.StockInStock)
	case strings.Contains(offer.Availability, "OutOfStock"):
		stockHint = string(domain.StockOutOfStock)
	}
	return price, stockHint
}

// jsonNumberString accepts a JSON value that sites encode as either a
// number or a string and returns it as a plain string.
func jsonNumberString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func parseBrandName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func (e *Extractor) extractTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		if text := firstNonEmpty(doc, selector); len(text) > 2 {
			return truncate(text, maxTitleLen)
		}
	}

	// Fallback: page <title> minus "| Site Name" style suffixes.
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		for _, sep := range []string{" | ", " – ", " — ", " - "} {
			if idx := strings.Index(title, sep); idx > 0 {
				title = title[:idx]
				break
			}
		}
		return truncate(strings.TrimSpace(title), maxTitleLen)
	}
	return ""
}

func (e *Extractor) extractPrice(doc *goquery.Document) string {
	for _, selector := range priceSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalizeSpace(s.Text())
			for _, pattern := range pricePatterns {
				if m := pattern.FindString(text); m != "" {
					found = m
					return false
				}
			}
			return true
		})
		if found != "" {
			return truncate(found, maxPriceLen)
		}
	}

	// Last resort: scan the whole cleaned text for a price-looking token.
	body := normalizeSpace(doc.Find("body").Text())
	for _, pattern := range pricePatterns {
		if m := pattern.FindString(body); m != "" {
			return truncate(m, maxPriceLen)
		}
	}
	return ""
}

func (e *Extractor) extractCTAButtons(doc *goquery.Document, pageURL string) []domain.CTAButton {
	buttons := []domain.CTAButton{}
	seen := map[string]bool{}

	doc.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		lower := strings.ToLower(text)
		for _, kw := range ctaKeywords {
			if strings.Contains(lower, kw) {
				href, _ := s.Attr("href")
				target := resolveHref(pageURL, href)
				key := lower + "|" + target
				if !seen[key] {
					seen[key] = true
					buttons = append(buttons, domain.CTAButton{
						Text: truncate(text, 60),
						URL:  target,
					})
				}
				break
			}
		}
		return len(buttons) < maxCTAButtons
	})
	return buttons
}

func (e *Extractor) extractReviews(doc *goquery.Document) []string {
	reviews := []string{}
	seen := map[string]bool{} // selectors overlap, dedupe by content
	for _, selector := range reviewSelectors {
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := normalizeSpace(s.Text())
			if len(text) > 20 && !seen[text] {
				seen[text] = true
				reviews = append(reviews, truncate(text, maxReviewLen))
			}
			return len(reviews) < maxReviews
		})
		if len(reviews) >= maxReviews {
			break
		}
	}
	return reviews
}

// resolveHref makes relative CTA targets absolute against the page URL.
func resolveHref(pageURL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return pageURL
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base := pageURL
	if idx := strings.Index(strings.TrimPrefix(strings.TrimPrefix(base, "https://"), "http://"), "/"); idx >= 0 {
		cut := len(base) - len(strings.TrimPrefix(strings.TrimPrefix(base, "https://"), "http://")) + idx
		base = base[:cut]
	}
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return base + "/" + href
}

func firstNonEmpty(doc *goquery.Document, selector string) string {
	var text string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = normalizeSpace(s.Text())
		return text == ""
	})
	return text
}

func extractFirstText(doc *goquery.Document, selectors []string, limit int) string {
	for _, selector := range selectors {
		if text := firstNonEmpty(doc, selector); text != "" {
			return truncate(text, limit)
		}
	}
	return ""
}

func cleanText(doc *goquery.Document, limit int) string {
	return truncate(normalizeSpace(doc.Find("body").Text()), limit)
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
