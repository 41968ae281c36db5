package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"go.uber.org/zap"
)

const (
	agentMapVersion = "1.0"
	llmsTxtCacheKey = "artifact:llms.txt"
)

// Artifacts bundles the two deterministic export documents.
type Artifacts struct {
	LLMsTxt  string           `json:"llms_txt"`
	AgentMap *domain.AgentMap `json:"agent_map"`
	// AgentMapJSON is the canonical serialized form of AgentMap.
	AgentMapJSON string `json:"-"`
	ProductCount int    `json:"product_count"`
}

// ArtifactService renders the current product set into llms.txt and the
// agent map. Rendering is a pure transform of the store snapshot; the
// only side effect is refreshing the llms.txt cache.
type ArtifactService struct {
	products domain.ProductRepository
	cache    domain.ArtifactCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewArtifactService creates an artifact service with dependencies.
func NewArtifactService(
	products domain.ProductRepository,
	cache domain.ArtifactCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *ArtifactService {
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactService{
		products: products,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Generate reads the full product set, renders both artifacts, and
// refreshes the llms.txt cache.
func (s *ArtifactService) Generate(ctx context.Context) (*Artifacts, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	artifacts, err := Render(products)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, llmsTxtCacheKey, artifacts.LLMsTxt, s.cacheTTL); err != nil {
		// Serving is degraded but generation succeeded; don't fail the call.
		s.logger.Warn("failed to cache llms.txt", zap.Error(err))
	}

	s.logger.Info("generated artifacts",
		zap.Int("product_count", artifacts.ProductCount))
	return artifacts, nil
}

// LLMsTxt serves the llms.txt artifact, regenerating on cache miss.
func (s *ArtifactService) LLMsTxt(ctx context.Context) (string, error) {
	if cached, err := s.cache.Get(ctx, llmsTxtCacheKey); err == nil {
		return cached, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("artifact cache read failed", zap.Error(err))
	}

	artifacts, err := s.Generate(ctx)
	if err != nil {
		return "", err
	}
	return artifacts.LLMsTxt, nil
}

// Invalidate drops the cached llms.txt; the next read regenerates from
// the live product set.
func (s *ArtifactService) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, llmsTxtCacheKey); err != nil {
		s.logger.Warn("artifact cache invalidation failed", zap.Error(err))
	}
}

// Render transforms an ordered product snapshot into the two artifacts.
// Deterministic by construction: the only timestamp in the output is the
// maximum updated_at of the input, so identical input yields byte-identical
// output. Products without a summary are skipped uniformly. A malformed
// record fails the whole render with its id and field, rather than
// emitting a partially wrong catalog.
func Render(products []*domain.Product) (*Artifacts, error) {
	entries := make([]domain.AgentMapProduct, 0, len(products))
	var lastUpdated time.Time

	for _, p := range products {
		if p.Summary == nil {
			continue
		}
		if err := validateRecord(p); err != nil {
			return nil, err
		}
		entries = append(entries, domain.AgentMapProduct{
			URL:           p.URL,
			Title:         p.Summary.Title,
			Price:         p.Summary.Price,
			BestForIntent: p.Summary.BestForIntent,
			WhyBuy:        p.Summary.WhyBuy,
			StockStatus:   p.Summary.StockStatus,
			Sentiment:     p.Summary.Sentiment,
			CTAURL:        p.Summary.CTAURL,
			Confidence:    p.Summary.Confidence,
		})
		if p.UpdatedAt.After(lastUpdated) {
			lastUpdated = p.UpdatedAt
		}
	}

	if len(entries) == 0 {
		return nil, domain.ErrNoProducts
	}

	agentMap := &domain.AgentMap{
		Version:      agentMapVersion,
		ProductCount: len(entries),
		UpdatedAt:    lastUpdated.UTC(),
		Products:     entries,
	}

	agentMapJSON, err := json.MarshalIndent(agentMap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal agent map: %w", err)
	}

	return &Artifacts{
		LLMsTxt:      renderLLMsTxt(agentMap),
		AgentMap:     agentMap,
		AgentMapJSON: string(agentMapJSON) + "\n",
		ProductCount: len(entries),
	}, nil
}

// renderLLMsTxt writes the markdown artifact AI agents fetch: a header
// block followed by one section per product, in store order.
func renderLLMsTxt(agentMap *domain.AgentMap) string {
	var b strings.Builder

	b.WriteString("# Product Catalog\n\n")
	b.WriteString("> Machine-readable product intelligence for AI shopping agents.\n")
	fmt.Fprintf(&b, "> %d products indexed. Catalog updated %s.\n\n",
		agentMap.ProductCount,
		agentMap.UpdatedAt.Format(time.RFC3339))

	for _, p := range agentMap.Products {
		link := p.CTAURL
		if link == "" {
			link = p.URL
		}
		fmt.Fprintf(&b, "## [%s](%s)\n\n", orUnknown(p.Title), link)
		fmt.Fprintf(&b, "- Price: %s\n", orUnknown(p.Price))
		fmt.Fprintf(&b, "- Stock: %s\n", p.StockStatus)
		fmt.Fprintf(&b, "- Best for: %s\n", orUnknown(p.BestForIntent))
		fmt.Fprintf(&b, "- Why buy: %q\n", orUnknown(p.WhyBuy))
		fmt.Fprintf(&b, "- Sentiment: %s\n\n", p.Sentiment)
	}

	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func validateRecord(p *domain.Product) error {
	if strings.TrimSpace(p.URL) == "" {
		return &domain.MalformedRecordError{
			ProductID: p.ID,
			Field:     "url",
			Reason:    "empty",
		}
	}
	c := p.Summary.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return &domain.MalformedRecordError{
			ProductID: p.ID,
			Field:     "confidence",
			Reason:    fmt.Sprintf("out of range: %v", c),
		}
	}
	return nil
}
