package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tvicl/server/internal/api/middleware"
	"tvicl/server/internal/config"
	"tvicl/server/internal/models"
	"tvicl/server/internal/services"
)

// AuthHandler serves account endpoints under /api/auth.
type AuthHandler struct {
	cfg      *config.Config
	users    services.IUserService
	profiles services.IProfileService
}

func NewAuthHandler(cfg *config.Config, users services.IUserService, profiles services.IProfileService) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, profiles: profiles}
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", h.cfg.CookieSecure, true)
}

// sessionResponse sets the token cookies and answers with the user and tokens.
func (h *AuthHandler) sessionResponse(c *gin.Context, status int, session *services.Session) {
	h.setCookie(c, middleware.AccessTokenCookie, session.Tokens.AccessToken, h.cfg.JwtTTL)
	h.setCookie(c, middleware.RefreshTokenCookie, session.Tokens.RefreshToken, h.cfg.JwtRefreshTTL)
	c.JSON(status, gin.H{"user": session.User, "tokens": session.Tokens})
}

// reissue refreshes the caller's tokens after a change to their roles.
func (h *AuthHandler) reissue(c *gin.Context, user *models.User) {
	session, err := h.users.IssueSession(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessionResponse(c, http.StatusOK, session)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	reg, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Registration successful. Please check your email to verify your account."
	if !reg.EmailSent {
		message = "Registration successful, but the verification email could not be sent. Please request a new one."
	}
	c.JSON(http.StatusCreated, gin.H{"user": reg.User, "emailSent": reg.EmailSent, "message": message})
}

// VerifyEmail handles GET /api/auth/verify-email/:token
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, err := h.users.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "message": "Email verified"})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) bindEmail(c *gin.Context) (string, bool) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return "", false
	}
	if err := services.ValidateRequest(&req); err != nil {
		respondError(c, err)
		return "", false
	}
	return req.Email, true
}

// ResendVerification handles POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	email, ok := h.bindEmail(c)
	if !ok {
		return
	}
	if err := h.users.ResendVerification(c.Request.Context(), email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification email sent"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := services.ValidateRequest(&req); err != nil {
		respondError(c, err)
		return
	}
	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessionResponse(c, http.StatusOK, session)
}

// Refresh handles POST /api/auth/refresh-token. The token comes from the refresh
// cookie or, failing that, the request body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	if token == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(c.Request.Body).Decode(&body)
		token = body.RefreshToken
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token required"})
		return
	}
	session, err := h.users.Refresh(c.Request.Context(), token)
	if errors.Is(err, services.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessionResponse(c, http.StatusOK, session)
}

// Logout handles POST /api/auth/logout. Cookies are cleared even for anonymous callers.
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID, ok := middleware.CurrentUserID(c); ok {
		if err := h.users.Logout(c.Request.Context(), userID); err != nil {
			respondError(c, err)
			return
		}
	}
	h.setCookie(c, middleware.AccessTokenCookie, "", -time.Second)
	h.setCookie(c, middleware.RefreshTokenCookie, "", -time.Second)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ForgotPassword handles POST /api/auth/forgot-password. The answer is the same
// whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	email, ok := h.bindEmail(c)
	if !ok {
		return
	}
	if err := h.users.ForgotPassword(c.Request.Context(), email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists for that email, a reset link has been sent"})
}

// ResetPassword handles POST /api/auth/reset-password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset. Please log in."})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.FindByID(c.Request.Context(), mustUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var update services.ProfileUpdate
	if !bindJSON(c, &update) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), mustUserID(c), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword handles PUT /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !bindJSON(c, &req) {
		return
	}
	err := h.users.ChangePassword(c.Request.Context(), mustUserID(c), req.CurrentPassword, req.NewPassword)
	if errors.Is(err, services.ErrInvalidCredentials) {
		badRequest(c, "Current password is incorrect")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. Please log in again."})
}

// UpdateRole handles PATCH /api/auth/role and reissues tokens for the new active role.
func (h *AuthHandler) UpdateRole(c *gin.Context) {
	var update services.RoleUpdate
	if !bindJSON(c, &update) {
		return
	}
	user, err := h.users.UpdateRole(c.Request.Context(), mustUserID(c), update)
	if err != nil {
		respondError(c, err)
		return
	}
	h.reissue(c, user)
}

type addProfileRequest struct {
	Type models.Role     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AddProfile handles POST /api/auth/add-profile for agent and estate profiles.
func (h *AuthHandler) AddProfile(c *gin.Context) {
	var req addProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Data) == 0 {
		req.Data = json.RawMessage("{}")
	}
	ctx := c.Request.Context()
	userID := mustUserID(c)

	var err error
	switch req.Type {
	case models.RoleAgent:
		var profile models.AgentProfile
		if err = json.Unmarshal(req.Data, &profile); err != nil {
			respondError(c, services.ViolationFromJSONError(err))
			return
		}
		_, err = h.profiles.AddAgentProfile(ctx, userID, &profile)
	case models.RoleEstate:
		var profile models.EstateProfile
		if err = json.Unmarshal(req.Data, &profile); err != nil {
			respondError(c, services.ViolationFromJSONError(err))
			return
		}
		_, err = h.profiles.AddEstateProfile(ctx, userID, &profile)
	default:
		respondError(c, &services.ValidationError{Violations: []services.FieldViolation{{Field: "type", Message: "must be one of: agent, estate"}}})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.users.FindByID(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.reissue(c, user)
}
