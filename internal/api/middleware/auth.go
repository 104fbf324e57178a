package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/auth"
	"tvicl/server/internal/models"
	"tvicl/server/internal/utils"
)

const (
	// ContextKeyUserID holds the authenticated utils.SixID in the Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyIsAdmin holds the key for admin status in Gin context.
	ContextKeyIsAdmin = "isAdmin"
	// ContextKeyActiveRole holds the models.Role the user is acting as.
	ContextKeyActiveRole = "activeRole"

	// AccessTokenCookie is the HttpOnly cookie carrying the access token.
	AccessTokenCookie = "accessToken"
	// RefreshTokenCookie is the HttpOnly cookie carrying the refresh token.
	RefreshTokenCookie = "refreshToken"
)

// TokenParser validates access tokens.
type TokenParser interface {
	ParseAccess(token string) (*auth.Claims, error)
}

// accessToken reads the token from the access cookie, falling back to a Bearer header.
func accessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func setClaims(c *gin.Context, claims *auth.Claims) bool {
	userID, err := utils.ParseSixID(claims.UserID)
	if err != nil {
		return false
	}
	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyIsAdmin, claims.IsAdmin)
	c.Set(ContextKeyActiveRole, models.Role(claims.ActiveRole))
	return true
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		claims, err := tokens.ParseAccess(token)
		if err != nil || !setClaims(c, claims) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets the
// request through anonymously otherwise.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := accessToken(c); token != "" {
			if claims, err := tokens.ParseAccess(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// AdminMiddleware creates a Gin middleware to check for admin privileges.
// Assumes AuthMiddleware runs first.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ContextKeyIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}

// RequireActiveRole lets the request through when the caller is acting as one of
// the given roles, or is an admin.
func RequireActiveRole(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextKeyActiveRole)
		active, _ := role.(models.Role)
		if !c.GetBool(ContextKeyIsAdmin) && !slices.Contains(allowed, active) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your active role cannot perform this action"})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user, if any.
func CurrentUserID(c *gin.Context) (utils.SixID, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return utils.SixID{}, false
	}
	id, ok := v.(utils.SixID)
	return id, ok
}
