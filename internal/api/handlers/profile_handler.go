package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/services"
)

// ProfileHandler serves agent and estate profiles.
type ProfileHandler struct {
	profiles services.IProfileService
}

func NewProfileHandler(profiles services.IProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetAgent handles GET /api/agents/:id
func (h *ProfileHandler) GetAgent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	profile, err := h.profiles.GetAgentProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetEstate handles GET /api/estates/:id
func (h *ProfileHandler) GetEstate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	profile, err := h.profiles.GetEstateProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateAgent handles PUT /api/agents/me with a merge patch of the caller's agent profile.
func (h *ProfileHandler) UpdateAgent(c *gin.Context) {
	var patch map[string]any
	if !bindJSON(c, &patch) {
		return
	}
	profile, err := h.profiles.UpdateAgentProfile(c.Request.Context(), mustUserID(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateEstate handles PUT /api/estates/me
func (h *ProfileHandler) UpdateEstate(c *gin.Context) {
	var patch map[string]any
	if !bindJSON(c, &patch) {
		return
	}
	profile, err := h.profiles.UpdateEstateProfile(c.Request.Context(), mustUserID(c), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
