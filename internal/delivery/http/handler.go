package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/agenticmap/backend/internal/domain"
	"github.com/agenticmap/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	index     *usecase.IndexService
	artifacts *usecase.ArtifactService
	compare   *usecase.CompareService
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	index *usecase.IndexService,
	artifacts *usecase.ArtifactService,
	compare *usecase.CompareService,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		index:     index,
		artifacts: artifacts,
		compare:   compare,
		logger:    logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "agenticmap-backend",
		"version": "1.0.0",
	})
}

type scrapeRequest struct {
	URL          string `json:"url" binding:"required"`
	ForceRefresh bool   `json:"force_refresh"`
}

// Scrape indexes one product URL through the full pipeline.
func (h *Handler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	result, err := h.index.ScrapeAndIndex(c.Request.Context(), req.URL, req.ForceRefresh)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := "indexed"
	if result.Cached {
		status = "cached"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"stale":   result.Stale,
		"product": result.Product,
	})
}

// ListProducts returns every indexed product.
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.index.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// GetProduct returns one indexed product by id.
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.index.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes an indexed product.
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.index.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Generate regenerates both export artifacts and refreshes the cache.
func (h *Handler) Generate(c *gin.Context) {
	artifacts, err := h.artifacts.Generate(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_count": artifacts.ProductCount,
		"llms_txt":      artifacts.LLMsTxt,
		"agent_map":     artifacts.AgentMap,
	})
}

// LLMsTxt serves the llms.txt artifact as plain text, the way crawlers
// and agents fetch it.
func (h *Handler) LLMsTxt(c *gin.Context) {
	content, err := h.artifacts.LLMsTxt(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoProducts) {
			c.String(http.StatusNotFound, "No products indexed yet.\n")
			return
		}
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.String(http.StatusOK, content)
}

type compareRequest struct {
	Question string `json:"question"`
}

// Compare runs the two-sided with/without-context experiment.
func (h *Handler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	comparison, err := h.compare.Compare(c.Request.Context(), req.Question)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// ListComparisons returns recent comparisons, newest first.
func (h *Handler) ListComparisons(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	comparisons, err := h.compare.ListComparisons(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(comparisons),
		"comparisons": comparisons,
	})
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var malformed *domain.MalformedRecordError

	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrEmptyQuestion),
		errors.Is(err, domain.ErrNoProducts):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyContent):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "page has no usable product content"})
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrComparisonNotFound),
		errors.Is(err, domain.ErrPageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPageBlocked):
		c.JSON(http.StatusBadGateway, gin.H{"error": "target site blocked the request"})
	case errors.Is(err, domain.ErrFetchFailed),
		errors.Is(err, domain.ErrLLMNoResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrLLMRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "LLM rate limit reached, retry shortly"})
	case errors.Is(err, domain.ErrFetchTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "target site timed out"})
	case errors.As(err, &malformed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
