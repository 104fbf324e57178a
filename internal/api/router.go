package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"tvicl/server/internal/api/handlers"
	"tvicl/server/internal/api/middleware"
	"tvicl/server/internal/auth"
	"tvicl/server/internal/config"
	"tvicl/server/internal/email"
	"tvicl/server/internal/models"
	"tvicl/server/internal/services"
	"tvicl/server/internal/storage"
)

// TaskQueue is the background work the API hands off: emails and media processing.
type TaskQueue interface {
	services.Mailer
	handlers.MediaQueue
}

// Deps are the connections and collaborators the API is built from.
type Deps struct {
	DB      *mongo.Database
	Queue   TaskQueue
	Storage storage.IS3Storage
	// Stop ends background housekeeping such as rate limiter cleanup.
	Stop <-chan struct{}
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	// Services
	ids := services.NewIdentifierService(deps.DB, cfg)
	validator := services.NewPropertyValidator(cfg, nil)
	propertyService := services.NewPropertyService(deps.DB, cfg, validator, ids)
	interactionService := services.NewInteractionService(deps.DB)
	queryService := services.NewListingQueryService(deps.DB, interactionService)
	accountActions := services.NewAccountActionService(deps.DB, cfg)
	userService := services.NewUserService(deps.DB, cfg, accountActions, deps.Queue, propertyService, interactionService)
	profileService := services.NewProfileService(deps.DB)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Apply global middleware first (order matters)
	globalLimiter := middleware.NewRateLimiterMiddleware("global", cfg.RateLimitRefillRate, cfg.RateLimitBucketSize, deps.Stop)
	authLimiter := middleware.NewRateLimiterMiddleware("auth", cfg.AuthRateLimitRefillRate, cfg.AuthRateLimitBucketSize, deps.Stop)
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigins))
	r.Use(globalLimiter.Limit())

	// Initialize handlers
	tokens := auth.NewIssuer(cfg)
	propertyHandler := handlers.NewPropertyHandler(propertyService, queryService, interactionService, userService)
	analyticsHandler := handlers.NewAnalyticsHandler(queryService)
	authHandler := handlers.NewAuthHandler(cfg, userService, profileService)
	profileHandler := handlers.NewProfileHandler(profileService)
	uploadHandler := handlers.NewUploadHandler(deps.Storage, deps.Queue)

	requireAuth := middleware.AuthMiddleware(tokens)
	optionalAuth := middleware.OptionalAuth(tokens)

	v1 := r.Group("/api")
	{
		v1.GET("/health", healthHandler(deps.DB))

		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authLimiter.Limit(), authHandler.Register)
			authRoutes.POST("/login", authLimiter.Limit(), authHandler.Login)
			authRoutes.POST("/logout", optionalAuth, authHandler.Logout)
			authRoutes.POST("/refresh-token", authHandler.Refresh)
			authRoutes.POST("/forgot-password", authLimiter.Limit(), authHandler.ForgotPassword)
			authRoutes.GET("/verify-email/:token", authHandler.VerifyEmail)
			authRoutes.POST("/resend-verification", authLimiter.Limit(), authHandler.ResendVerification)
			authRoutes.POST("/reset-password/:token", authLimiter.Limit(), authHandler.ResetPassword)

			authRoutes.GET("/me", requireAuth, authHandler.Me)
			authRoutes.PUT("/profile", requireAuth, authHandler.UpdateProfile)
			authRoutes.PUT("/change-password", requireAuth, authHandler.ChangePassword)
			authRoutes.PATCH("/role", requireAuth, authHandler.UpdateRole)
			authRoutes.POST("/add-profile", requireAuth, authHandler.AddProfile)
		}

		v1.GET("/agents/:id", profileHandler.GetAgent)
		v1.GET("/estates/:id", profileHandler.GetEstate)
		v1.PUT("/agents/me", requireAuth, profileHandler.UpdateAgent)
		v1.PUT("/estates/me", requireAuth, profileHandler.UpdateEstate)

		props := v1.Group("/properties")
		{
			props.GET("", optionalAuth, propertyHandler.Search)
			props.GET("/mine", requireAuth, propertyHandler.Mine)
			props.GET("/ref/:propertyId", propertyHandler.GetByReference)
			props.GET("/slug/:slug", propertyHandler.GetBySlug)
			props.GET("/:id", optionalAuth, propertyHandler.GetByID)
			props.GET("/:id/related", propertyHandler.Related)

			props.POST("/create", requireAuth, middleware.RequireActiveRole(models.ListingRoles...), propertyHandler.Create)
			props.PUT("/:id", requireAuth, propertyHandler.Update)
			props.DELETE("/:id", requireAuth, propertyHandler.Delete)
			props.POST("/:id/restore", requireAuth, propertyHandler.Restore)

			props.POST("/:id/share", optionalAuth, propertyHandler.Share)
			props.POST("/:id/inquire", propertyHandler.Inquire)
			props.POST("/:id/save", requireAuth, propertyHandler.Save)
			props.PATCH("/:id/verification", requireAuth, middleware.AdminMiddleware(), propertyHandler.SetVerification)
		}

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/top-viewed", analyticsHandler.TopViewed)
			analytics.GET("/by-listing-type", analyticsHandler.ByListingType)
			analytics.GET("/average-price", analyticsHandler.AveragePrice)
			analytics.GET("/by-state", analyticsHandler.ByState)
			analytics.GET("/recent", analyticsHandler.Recent)
			analytics.GET("/trending", analyticsHandler.Trending)
			analytics.GET("/recommendations", requireAuth, analyticsHandler.Recommendations)
		}

		// Admin Routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(requireAuth, middleware.AdminMiddleware())
		{
			adminRequired.GET("/properties/pending", propertyHandler.PendingApproval)
		}

		uploads := v1.Group("/uploads")
		uploads.Use(requireAuth)
		{
			uploads.POST("/presign", uploadHandler.Presign)
			uploads.POST("/process", uploadHandler.Process)
		}
	}

	return r
}

func healthHandler(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Client().Ping(ctx, nil); err != nil {
			log.Printf("Health check failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	}
}

// SetupServiceRouter configures the internal service engine used by test harnesses
// and operators: shutdown, and reading emails captured by the Redis sender.
func SetupServiceRouter(rdb redis.Cmdable, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			captured, err := pollTestEmail(c.Request.Context(), rdb, email.MockEmailKey(args[1], email.Kind(args[0])))
			if errors.Is(err, redis.Nil) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found for %s", args[1])})
				return
			}
			if err != nil {
				log.Printf("Service API: failed to read test email: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read test email"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": captured})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// pollTestEmail waits briefly for a captured email, then removes it so the next
// read sees only newer mail. It returns redis.Nil when nothing arrives.
func pollTestEmail(ctx context.Context, rdb redis.Cmdable, key string) (*email.CapturedEmail, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw string
	var err error
	for i := 0; i < 10; i++ {
		raw, err = rdb.GetDel(ctx, key).Result()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, redis.Nil
		case <-time.After(200 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, err
	}

	var captured email.CapturedEmail
	if err := json.Unmarshal([]byte(raw), &captured); err != nil {
		return nil, fmt.Errorf("failed to parse stored email data: %w", err)
	}
	return &captured, nil
}
