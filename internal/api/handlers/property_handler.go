package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/api/middleware"
	"tvicl/server/internal/models"
	"tvicl/server/internal/services"
	"tvicl/server/internal/utils"
)

// PropertyHandler serves the property listing endpoints.
type PropertyHandler struct {
	properties   services.IPropertyService
	queries      services.IListingQueryService
	interactions services.IInteractionService
	users        services.IUserService
}

func NewPropertyHandler(properties services.IPropertyService, queries services.IListingQueryService, interactions services.IInteractionService, users services.IUserService) *PropertyHandler {
	return &PropertyHandler{properties: properties, queries: queries, interactions: interactions, users: users}
}

// record stores an interaction for an authenticated caller. Failures are logged only.
func (h *PropertyHandler) record(c *gin.Context, propertyID utils.SixID, action models.InteractionAction, query string) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	if err := h.interactions.Record(c.Request.Context(), userID, propertyID, action, query); err != nil {
		log.Printf("Failed to record %s interaction for user %s: %v", action, userID, err)
	}
}

// parseSearchFilters reads the search query string. Malformed numbers are ignored.
func parseSearchFilters(c *gin.Context) services.SearchFilters {
	f := services.SearchFilters{
		Query:        strings.TrimSpace(c.Query("q")),
		City:         strings.TrimSpace(c.Query("city")),
		State:        strings.TrimSpace(c.Query("state")),
		ListingType:  models.ListingType(c.Query("listingType")),
		PropertyType: models.PropertyType(c.Query("propertyType")),
	}
	if v, err := strconv.ParseFloat(c.Query("minPrice"), 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(c.Query("maxPrice"), 64); err == nil {
		f.MaxPrice = &v
	}
	if v, err := strconv.Atoi(c.Query("bedrooms")); err == nil {
		f.MinBedrooms = &v
	}
	if v, err := strconv.ParseBool(c.Query("verified")); err == nil {
		f.Verified = &v
	}
	return f
}

// Search handles GET /api/properties
func (h *PropertyHandler) Search(c *gin.Context) {
	filters := parseSearchFilters(c)
	page, err := h.queries.Search(c.Request.Context(), filters, queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if filters.Query != "" {
		h.record(c, utils.SixID{}, models.InteractionSearch, filters.Query)
	}
	c.JSON(http.StatusOK, page)
}

// GetByID handles GET /api/properties/:id and counts the view.
func (h *PropertyHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	property, err := h.properties.FindPropertyByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.properties.IncrementCounter(c.Request.Context(), id, models.CounterViews); err != nil {
		log.Printf("Failed to count view of property %s: %v", id, err)
	} else {
		property.Views++
	}
	h.record(c, id, models.InteractionView, "")
	c.JSON(http.StatusOK, property)
}

// GetByReference handles GET /api/properties/ref/:propertyId
func (h *PropertyHandler) GetByReference(c *gin.Context) {
	property, err := h.properties.FindByPropertyID(c.Request.Context(), c.Param("propertyId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

// GetBySlug handles GET /api/properties/slug/:slug
func (h *PropertyHandler) GetBySlug(c *gin.Context) {
	property, err := h.properties.FindBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *PropertyHandler) Related(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	related, err := h.queries.Related(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": related})
}

// Create handles POST /api/properties/create
func (h *PropertyHandler) Create(c *gin.Context) {
	var details models.PropertyDetails
	if !bindJSON(c, &details) {
		return
	}
	property, err := h.properties.CreateProperty(c.Request.Context(), mustUserID(c), &details)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, property)
}

// authorizeOwner loads the property in any state and checks the caller owns it or is an admin.
func (h *PropertyHandler) authorizeOwner(c *gin.Context, id utils.SixID) bool {
	property, err := h.properties.FindPropertyAnyState(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return false
	}
	if property.Owner != mustUserID(c) && !c.GetBool(middleware.ContextKeyIsAdmin) {
		respondError(c, ErrForbidden)
		return false
	}
	return true
}

// Update handles PUT /api/properties/:id with a JSON merge patch body.
func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var patch map[string]any
	if !bindJSON(c, &patch) {
		return
	}
	ctx := c.Request.Context()
	if !h.authorizeOwner(c, id) {
		return
	}
	property, err := h.properties.UpdateProperty(ctx, id, mustUserID(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

// Delete handles DELETE /api/properties/:id (soft delete).
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if !h.authorizeOwner(c, id) {
		return
	}
	if err := h.properties.SoftDeleteProperty(ctx, id, mustUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Property deleted"})
}

// Restore handles POST /api/properties/:id/restore
func (h *PropertyHandler) Restore(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if !h.authorizeOwner(c, id) {
		return
	}
	property, err := h.properties.RestoreProperty(ctx, id, mustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (h *PropertyHandler) bumpCounter(c *gin.Context, counter models.PropertyCounter) (utils.SixID, bool) {
	id, ok := pathID(c)
	if !ok {
		return id, false
	}
	if err := h.properties.IncrementCounter(c.Request.Context(), id, counter); err != nil {
		respondError(c, err)
		return id, false
	}
	return id, true
}

// Share handles POST /api/properties/:id/share
func (h *PropertyHandler) Share(c *gin.Context) {
	id, ok := h.bumpCounter(c, models.CounterShares)
	if !ok {
		return
	}
	h.record(c, id, models.InteractionShare, "")
	c.JSON(http.StatusOK, gin.H{"message": "Share recorded"})
}

// Inquire handles POST /api/properties/:id/inquire
func (h *PropertyHandler) Inquire(c *gin.Context) {
	if _, ok := h.bumpCounter(c, models.CounterInquiries); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Inquiry recorded"})
}

// Save handles POST /api/properties/:id/save. Saving twice is harmless.
func (h *PropertyHandler) Save(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	added, err := h.users.SaveProperty(c.Request.Context(), mustUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "added": added})
}

type verificationRequest struct {
	Approved *bool  `json:"approved"`
	Reason   string `json:"reason"`
}

// SetVerification handles PATCH /api/properties/:id/verification (admin).
func (h *PropertyHandler) SetVerification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req verificationRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Approved == nil {
		respondError(c, &services.ValidationError{Violations: []services.FieldViolation{{Field: "approved", Message: "is required"}}})
		return
	}
	property, err := h.properties.SetVerification(c.Request.Context(), id, mustUserID(c), *req.Approved, strings.TrimSpace(req.Reason))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

// Mine handles GET /api/properties/mine
func (h *PropertyHandler) Mine(c *gin.Context) {
	page, err := h.properties.ListByOwner(c.Request.Context(), mustUserID(c), queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// PendingApproval handles GET /api/admin/properties/pending
func (h *PropertyHandler) PendingApproval(c *gin.Context) {
	page, err := h.properties.ListPendingApproval(c.Request.Context(), queryPage(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
