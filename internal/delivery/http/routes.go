package http

import (
	"github.com/agenticmap/backend/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// llms.txt lives at the conventional root path agents expect
	router.GET("/llms.txt", handler.LLMsTxt)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/scrape", handler.Scrape)
		v1.GET("/products", handler.ListProducts)
		v1.GET("/products/:id", handler.GetProduct)
		v1.DELETE("/products/:id", handler.DeleteProduct)
		v1.POST("/generate", handler.Generate)
		v1.POST("/compare", handler.Compare)
		v1.GET("/comparisons", handler.ListComparisons)
	}

	return router
}
