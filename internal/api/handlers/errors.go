package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/api/middleware"
	"tvicl/server/internal/services"
	"tvicl/server/internal/utils"
)

// ErrForbidden is returned when the caller may not act on the resource.
var ErrForbidden = errors.New("you do not have permission to modify this resource")

// respondError maps service errors to HTTP responses. Unexpected errors are logged
// with their stack and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Validation failed", "details": verr.Violations})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrEmailExists),
		errors.Is(err, services.ErrAlreadyVerified):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnverified),
		errors.Is(err, services.ErrRoleNotHeld),
		errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Printf("Request %s %s failed: %+v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// pathID parses the :id path parameter, answering 400 when it is malformed.
func pathID(c *gin.Context) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid ID format")
		return utils.SixID{}, false
	}
	return id, true
}

// bindJSON decodes the body into dst, reporting type mismatches as validation errors.
func bindJSON(c *gin.Context, dst any) bool {
	if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil {
		respondError(c, services.ViolationFromJSONError(err))
		return false
	}
	return true
}

// mustUserID returns the authenticated user. Routes using it sit behind AuthMiddleware.
func mustUserID(c *gin.Context) utils.SixID {
	id, _ := middleware.CurrentUserID(c)
	return id
}

func queryPage(c *gin.Context) services.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return services.Pagination{Page: page, Limit: limit}
}
