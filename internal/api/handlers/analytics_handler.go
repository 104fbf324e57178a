package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/services"
)

// AnalyticsHandler serves listing statistics and recommendations.
type AnalyticsHandler struct {
	queries services.IListingQueryService
}

func NewAnalyticsHandler(queries services.IListingQueryService) *AnalyticsHandler {
	return &AnalyticsHandler{queries: queries}
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return services.DefaultAnalyticsSize
	}
	return limit
}

// items writes result under "items", or maps err.
func items[T any](c *gin.Context, result T, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": result})
}

func (h *AnalyticsHandler) TopViewed(c *gin.Context) {
	result, err := h.queries.TopViewed(c.Request.Context(), queryLimit(c))
	items(c, result, err)
}

func (h *AnalyticsHandler) ByListingType(c *gin.Context) {
	result, err := h.queries.CountByListingType(c.Request.Context())
	items(c, result, err)
}

func (h *AnalyticsHandler) AveragePrice(c *gin.Context) {
	result, err := h.queries.AveragePriceByType(c.Request.Context())
	items(c, result, err)
}

func (h *AnalyticsHandler) ByState(c *gin.Context) {
	result, err := h.queries.CountByState(c.Request.Context())
	items(c, result, err)
}

func (h *AnalyticsHandler) Recent(c *gin.Context) {
	result, err := h.queries.Recent(c.Request.Context(), queryLimit(c))
	items(c, result, err)
}

func (h *AnalyticsHandler) Trending(c *gin.Context) {
	result, err := h.queries.Trending(c.Request.Context())
	items(c, result, err)
}

// Recommendations handles GET /api/analytics/recommendations for the signed-in user.
func (h *AnalyticsHandler) Recommendations(c *gin.Context) {
	result, err := h.queries.Recommendations(c.Request.Context(), mustUserID(c))
	items(c, result, err)
}
