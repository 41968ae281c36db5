package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// IndexServiceConfig holds tuning knobs for the indexing pipeline.
type IndexServiceConfig struct {
	// ScrapeTimeout bounds the whole fetch+extract+summarize sequence.
	// Generous by default: slow stores and challenge flows take a while.
	ScrapeTimeout time.Duration
	// StaleConfidence is the threshold below which a stored summary is
	// flagged as warranting a re-scrape.
	StaleConfidence float64
}

// IndexResult is the outcome of a scrape request: the stored product and
// whether it was served from the index without running the pipeline.
type IndexResult struct {
	Product *domain.Product `json:"product"`
	Cached  bool            `json:"cached"`
	Stale   bool            `json:"stale"`
}

// IndexService runs the scrape → extract → summarize → upsert pipeline.
// Concurrent requests for the same normalized URL are collapsed: the
// second caller waits for and shares the in-flight result rather than
// racing a duplicate scrape.
type IndexService struct {
	fetcher    domain.PageFetcher
	extractor  domain.SignalExtractor
	summarizer *Summarizer
	products   domain.ProductRepository
	group      singleflight.Group
	config     IndexServiceConfig
	logger     *zap.Logger
}

// NewIndexService creates an index service with dependencies.
func NewIndexService(
	fetcher domain.PageFetcher,
	extractor domain.SignalExtractor,
	summarizer *Summarizer,
	products domain.ProductRepository,
	config IndexServiceConfig,
	logger *zap.Logger,
) *IndexService {
	if config.ScrapeTimeout == 0 {
		config.ScrapeTimeout = 2 * time.Minute
	}
	if config.StaleConfidence == 0 {
		config.StaleConfidence = 0.5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexService{
		fetcher:    fetcher,
		extractor:  extractor,
		summarizer: summarizer,
		products:   products,
		config:     config,
		logger:     logger,
	}
}

// ScrapeAndIndex indexes one product URL. An already-indexed URL is
// returned as-is with Cached=true unless forceRefresh is set; the store,
// not the summarizer, decides hit vs. miss, so a cache hit spends no LLM
// tokens at all.
func (s *IndexService) ScrapeAndIndex(ctx context.Context, rawURL string, forceRefresh bool) (*IndexResult, error) {
	if err := validateProductURL(rawURL); err != nil {
		return nil, err
	}
	key := domain.NormalizeURL(rawURL)

	if !forceRefresh {
		if existing, err := s.products.GetByNormalizedURL(ctx, key); err == nil {
			s.logger.Debug("index cache hit", zap.String("url", key))
			return &IndexResult{
				Product: existing,
				Cached:  true,
				Stale:   existing.Stale(s.config.StaleConfidence),
			}, nil
		}
	}

	// Collapse concurrent scrapes of the same normalized URL: one pipeline
	// runs, everyone waiting on the key shares its outcome.
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.runPipeline(ctx, rawURL, key, forceRefresh)
	})
	if err != nil {
		return nil, err
	}

	product := v.(*domain.Product)
	return &IndexResult{
		Product: product,
		Cached:  shared,
		Stale:   product.Stale(s.config.StaleConfidence),
	}, nil
}

// runPipeline executes fetch → extract → summarize → upsert under the
// scrape timeout. No partial product is ever visible: the upsert at the
// end is the only write.
func (s *IndexService) runPipeline(ctx context.Context, rawURL, key string, forceRefresh bool) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ScrapeTimeout)
	defer cancel()

	// A waiter that lost the singleflight race to a just-finished flight
	// may land here after the record exists; don't scrape twice.
	if !forceRefresh {
		if existing, err := s.products.GetByNormalizedURL(ctx, key); err == nil {
			return existing, nil
		}
	}

	s.logger.Info("scraping", zap.String("url", rawURL))
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	signals, err := s.extractor.Extract(page)
	if err != nil {
		// No usable signal: abort before any LLM spend.
		return nil, err
	}

	summary, err := s.summarizer.Summarize(ctx, rawURL, signals)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:            uuid.New().String(),
		URL:           rawURL,
		NormalizedURL: key,
		RawSignals:    *signals,
		Summary:       summary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing, err := s.products.GetByNormalizedURL(ctx, key); err == nil {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
	}

	stored, err := s.products.Upsert(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("persist product: %w", err)
	}

	s.logger.Info("indexed product",
		zap.String("id", stored.ID),
		zap.String("url", key),
		zap.Float64("confidence", summary.Confidence))
	return stored, nil
}

// ListProducts returns all indexed products in stable order.
func (s *IndexService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.products.List(ctx)
}

// GetProduct returns one product by id.
func (s *IndexService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

// DeleteProduct removes a product; the next scrape of its URL is treated
// as brand-new.
func (s *IndexService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted product", zap.String("id", id))
	return nil
}

func validateProductURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url %q", domain.ErrInvalidRequest, rawURL)
	}
	return nil
}
