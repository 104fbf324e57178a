package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret        string
	JwtRefreshSecret string
	JwtTTL           time.Duration
	JwtRefreshTTL    time.Duration

	// Server
	ApiPort            string
	ServiceApiPort     string
	ClientURL          string
	CorsAllowedOrigins []string
	CookieSecure       bool

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// Accounts
	AppName           string
	PasswordMinLength int
	VerificationTTL   time.Duration
	ResetPasswordTTL  time.Duration

	// Properties
	PropertyIDPrefix       string
	PropertyIDLength       int
	IDGenerationMaxRetries int
	DefaultCountry         string
	DefaultCurrency        string

	// Rate limiting (token bucket per client)
	RateLimitBucketSize     int
	RateLimitRefillRate     float64 // tokens per second
	AuthRateLimitBucketSize int
	AuthRateLimitRefillRate float64
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		n, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(n) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "tvicl")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.JwtRefreshSecret = getEnv("JWT_REFRESH_SECRET", cfg.JwtSecret)
	cfg.ApiPort = getEnv("API_PORT", "5000")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.ClientURL = strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/")
	cfg.CorsAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", cfg.ClientURL))
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@tvicl.example.com")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = strings.TrimRight(getEnv("IMAGE_BASE_S3_URL", ""), "/")
	cfg.AppName = getEnv("APP_NAME", "TVICL")
	cfg.PropertyIDPrefix = getEnv("PROPERTY_ID_PREFIX", "TVICL")
	cfg.DefaultCountry = getEnv("DEFAULT_COUNTRY", "Nigeria")
	cfg.DefaultCurrency = getEnv("DEFAULT_CURRENCY", "NGN")

	cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
	}

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// Access tokens live 15 minutes, refresh tokens 7 days.
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "900"); err != nil {
		return nil, err
	}
	if cfg.JwtRefreshTTL, err = getSeconds("JWT_REFRESH_TTL_SECONDS", "604800"); err != nil {
		return nil, err
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	cfg.PasswordMinLength, err = strconv.Atoi(getEnv("PASSWORD_MIN_LENGTH", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_MIN_LENGTH: %w", err)
	}

	verificationTTLHours, err := strconv.ParseInt(getEnv("VERIFICATION_TTL_HOURS", "24"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_TTL_HOURS: %w", err)
	}
	cfg.VerificationTTL = time.Duration(verificationTTLHours) * time.Hour

	resetTTLMinutes, err := strconv.ParseInt(getEnv("RESET_PASSWORD_TTL_MINUTES", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RESET_PASSWORD_TTL_MINUTES: %w", err)
	}
	cfg.ResetPasswordTTL = time.Duration(resetTTLMinutes) * time.Minute

	cfg.PropertyIDLength, err = strconv.Atoi(getEnv("PROPERTY_ID_LENGTH", "10"))
	if err != nil || cfg.PropertyIDLength <= 0 {
		return nil, fmt.Errorf("invalid PROPERTY_ID_LENGTH: %v", getEnv("PROPERTY_ID_LENGTH", "10"))
	}

	cfg.IDGenerationMaxRetries, err = strconv.Atoi(getEnv("ID_GENERATION_MAX_RETRIES", "5"))
	if err != nil || cfg.IDGenerationMaxRetries < 0 {
		return nil, fmt.Errorf("invalid ID_GENERATION_MAX_RETRIES: %v", getEnv("ID_GENERATION_MAX_RETRIES", "5"))
	}

	// Rate Limiting: roughly 200 requests per 15 minutes globally, 20 for auth endpoints.
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.ParseFloat(getEnv("RATE_LIMIT_REFILL_RATE", "0.22"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}
	cfg.AuthRateLimitBucketSize, err = strconv.Atoi(getEnv("AUTH_RATE_LIMIT_BUCKET_SIZE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.AuthRateLimitRefillRate, err = strconv.ParseFloat(getEnv("AUTH_RATE_LIMIT_REFILL_RATE", "0.022"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}
