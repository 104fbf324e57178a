package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tvicl/server/internal/config"
	"tvicl/server/internal/utils"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

// Claims defines the structure of the JWT claims.
type Claims struct {
	UserID     string    `json:"user_id"`
	ActiveRole string    `json:"active_role,omitempty"`
	IsAdmin    bool      `json:"is_admin"`
	TokenType  TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Subject identifies who a token is issued for.
type Subject struct {
	UserID     utils.SixID
	ActiveRole string
	IsAdmin    bool
}

// GenerateJWT creates a signed HS256 token of the given type for subject.
func GenerateJWT(subject Subject, tokenType TokenType, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     subject.UserID.String(),
		ActiveRole: subject.ActiveRole,
		IsAdmin:    subject.IsAdmin,
		TokenType:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   subject.UserID.String(),
			ID:        utils.NewSixID().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if it is valid and of the expected type.
func ValidateJWT(tokenString string, tokenType TokenType, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.TokenType, tokenType)
	}

	return claims, nil
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Issuer signs access and refresh tokens with separate secrets and lifetimes.
type Issuer struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// NewIssuer builds an Issuer from the JWT settings in cfg.
func NewIssuer(cfg *config.Config) Issuer {
	return Issuer{
		AccessSecret:  cfg.JwtSecret,
		RefreshSecret: cfg.JwtRefreshSecret,
		AccessTTL:     cfg.JwtTTL,
		RefreshTTL:    cfg.JwtRefreshTTL,
	}
}

func (i Issuer) Issue(subject Subject) (*TokenPair, error) {
	now := time.Now()
	access, err := GenerateJWT(subject, TokenAccess, i.AccessSecret, i.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := GenerateJWT(subject, TokenRefresh, i.RefreshSecret, i.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(i.AccessTTL),
		RefreshExpiresAt: now.Add(i.RefreshTTL),
	}, nil
}

func (i Issuer) ParseRefresh(token string) (*Claims, error) {
	return ValidateJWT(token, TokenRefresh, i.RefreshSecret)
}

func (i Issuer) ParseAccess(token string) (*Claims, error) {
	return ValidateJWT(token, TokenAccess, i.AccessSecret)
}
