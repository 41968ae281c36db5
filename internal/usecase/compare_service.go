package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	compareTemperature = 0.7
	compareMaxTokens   = 512

	baselineSystemPrompt = "You are a helpful shopping assistant. " +
		"Answer the user's question about products. " +
		"You have no specific product catalog — answer from general knowledge."

	labelWithoutContext = "Baseline — No Product Context"
	labelWithContext    = "Agent-First — With Product Catalog"
)

// CompareService is the proof layer: it asks the same question twice, once
// bare and once with the product catalog injected, and records both
// answers with their token cost. The injected context is the only variable.
type CompareService struct {
	chat        domain.ChatClient
	products    domain.ProductRepository
	comparisons domain.ComparisonRepository
	logger      *zap.Logger
}

// NewCompareService creates a compare service with dependencies.
func NewCompareService(
	chat domain.ChatClient,
	products domain.ProductRepository,
	comparisons domain.ComparisonRepository,
	logger *zap.Logger,
) *CompareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompareService{
		chat:        chat,
		products:    products,
		comparisons: comparisons,
		logger:      logger,
	}
}

// Compare runs the two-sided experiment. Both invocations use identical
// question text and model configuration. If either call fails, nothing is
// persisted: a question gets a complete two-sided record or none at all.
func (s *CompareService) Compare(ctx context.Context, question string) (*domain.Comparison, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	s.logger.Info("running baseline query", zap.String("question", question))
	baseline, err := s.chat.Complete(ctx, domain.ChatRequest{
		System:      baselineSystemPrompt,
		User:        question,
		Temperature: compareTemperature,
		MaxTokens:   compareMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("baseline query: %w", err)
	}

	// Always render from the live store so newly indexed products are
	// included immediately.
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	artifacts, err := Render(products)
	if err != nil {
		return nil, err
	}
	catalogPrompt := buildCatalogPrompt(artifacts.AgentMap)

	s.logger.Info("running context-injected query", zap.String("question", question))
	grounded, err := s.chat.Complete(ctx, domain.ChatRequest{
		System:      catalogPrompt,
		User:        question,
		Temperature: compareTemperature,
		MaxTokens:   compareMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("context query: %w", err)
	}

	comparison := &domain.Comparison{
		ID:       uuid.New().String(),
		Question: question,
		WithoutContext: domain.ComparisonSide{
			Answer:     baseline.Content,
			TokensUsed: tokensOrEstimate(baseline, baselineSystemPrompt, question),
			Label:      labelWithoutContext,
		},
		WithContext: domain.ComparisonSide{
			Answer:     grounded.Content,
			TokensUsed: tokensOrEstimate(grounded, catalogPrompt, question),
			Label:      labelWithContext,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.comparisons.Save(ctx, comparison); err != nil {
		return nil, fmt.Errorf("save comparison: %w", err)
	}

	s.logger.Info("comparison recorded",
		zap.String("id", comparison.ID),
		zap.Int("tokens_without", comparison.WithoutContext.TokensUsed),
		zap.Int("tokens_with", comparison.WithContext.TokensUsed))
	return comparison, nil
}

// ListComparisons returns the proof-layer history, newest first.
func (s *CompareService) ListComparisons(ctx context.Context, limit int) ([]*domain.Comparison, error) {
	return s.comparisons.List(ctx, limit)
}

// buildCatalogPrompt renders the agent map as a compact pipe-delimited
// table inside the system prompt. Tabular beats full JSON here: same
// signal at roughly a third of the tokens.
func buildCatalogPrompt(agentMap *domain.AgentMap) string {
	lines := make([]string, 0, len(agentMap.Products))
	for _, p := range agentMap.Products {
		lines = append(lines, fmt.Sprintf("- %s | %s | %s | %s | %s | %s",
			p.Title,
			orUnknown(p.Price),
			p.BestForIntent,
			p.WhyBuy,
			p.StockStatus,
			p.CTAURL,
		))
	}

	return fmt.Sprintf(`You are an intelligent shopping assistant. You have been given a pre-indexed product catalog built from real product pages.

=== PRODUCT CATALOG ===
%s
=== END CATALOG ===

Instructions:
- Search the catalog first. If one or more products match the user's request, recommend those — cite the exact product name, price, and buy URL so the user can act immediately.
- If the user states a price limit, only recommend catalog products at or below that price. Never suggest a catalog product that exceeds the stated budget.
- When multiple catalog products qualify, list all of them.
- You may use your general knowledge to explain WHY a catalog product fits — but do not recommend products that are not in the catalog.
- If no catalog product matches, say so clearly and describe what IS available.`,
		strings.Join(lines, "\n"))
}

// tokensOrEstimate prefers the provider-reported usage; when the provider
// omits it, falls back to the rough 4-chars-per-token heuristic over the
// full exchange.
func tokensOrEstimate(resp *domain.ChatResponse, system, user string) int {
	if resp.TokensUsed > 0 {
		return resp.TokensUsed
	}
	return (len(system) + len(user) + len(resp.Content) + 3) / 4
}
