package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/agenticmap/backend/config"
	httpDelivery "github.com/agenticmap/backend/internal/delivery/http"
	"github.com/agenticmap/backend/internal/domain"
	"github.com/agenticmap/backend/internal/infrastructure/cache"
	"github.com/agenticmap/backend/internal/infrastructure/extract"
	"github.com/agenticmap/backend/internal/infrastructure/fetch"
	"github.com/agenticmap/backend/internal/infrastructure/llm"
	"github.com/agenticmap/backend/internal/infrastructure/store"
	"github.com/agenticmap/backend/internal/usecase"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting agenticmap backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Type),
		zap.String("cache", cfg.Cache.Type),
		zap.String("model", cfg.LLM.Model))

	// Persistence
	products, comparisons, err := buildStores(cfg, logger)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	artifactCache, err := buildCache(cfg, logger)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}

	// External clients
	chatClient := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, llm.Options{
		Timeout:        cfg.LLM.Timeout,
		RequestsPerMin: cfg.LLM.RequestsPerMin,
		Logger:         logger,
	})
	fetcher := fetch.NewFetcher(fetch.Options{
		Timeout:   cfg.Scraper.Timeout,
		UserAgent: cfg.Scraper.UserAgent,
		Logger:    logger,
	})
	extractor := extract.NewExtractor(logger)

	// Usecase layer
	summarizer := usecase.NewSummarizer(chatClient, logger)
	indexService := usecase.NewIndexService(fetcher, extractor, summarizer, products, usecase.IndexServiceConfig{
		ScrapeTimeout:   cfg.Scraper.Timeout,
		StaleConfidence: cfg.Index.StaleConfidence,
	}, logger)
	artifactService := usecase.NewArtifactService(products, artifactCache, cfg.Cache.TTL, logger)
	compareService := usecase.NewCompareService(chatClient, products, comparisons, logger)

	// HTTP delivery
	handler := httpDelivery.NewHandler(indexService, artifactService, compareService, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func buildStores(cfg *config.Config, logger *zap.Logger) (domain.ProductRepository, domain.ComparisonRepository, error) {
	if cfg.Store.Type == "memory" {
		return store.NewMemoryProductStore(), store.NewMemoryComparisonStore(), nil
	}

	db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	// The database may still be starting alongside us; wait for it.
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Warn("waiting for database", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to db: %w", err)
	}
	if err := store.RunMigrations(db); err != nil {
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return store.NewPgProductStore(db), store.NewPgComparisonStore(db), nil
}

func buildCache(cfg *config.Config, logger *zap.Logger) (domain.ArtifactCache, error) {
	if cfg.Cache.Type == "memory" {
		return cache.NewMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis init: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		// Degraded but not fatal: every artifact read regenerates instead.
		logger.Warn("redis ping failed", zap.Error(err))
	}
	return redisCache, nil
}
