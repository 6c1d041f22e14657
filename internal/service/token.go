package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

type accessClaims struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are the verified contents of a refresh token.
type RefreshClaims struct {
	ID           string `json:"id"`
	TokenVersion int    `json:"tokenVersion"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens with separate
// HMAC secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	if cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("%w: JWT_REFRESH_SECRET is required", ErrMisconfigured)
	}

	accessTTL, err := parseTTL(cfg.JWTAccessTTL, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}
	refreshTTL, err := parseTTL(cfg.JWTRefreshTTL, 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	return &TokenService{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// SetClock replaces the time source used for issuing and verifying tokens.
func (s *TokenService) SetClock(now func() time.Time) { s.now = now }

func (s *TokenService) IssueAccessToken(user *model.User) (string, error) {
	now := s.now()
	claims := accessClaims{
		ID:    user.ID.String(),
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *TokenService) IssueRefreshToken(user *model.User) (string, error) {
	now := s.now()
	claims := RefreshClaims{
		ID:           user.ID.String(),
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

// VerifyAccessToken returns the identity carried by a valid access token.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.accessSecret, nil
	}, jwt.WithValidMethods(validMethods), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &model.AuthUser{
		ID:    claims.ID,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// VerifyRefreshToken returns nil for any token that is malformed, expired or
// signed with another key.
func (s *TokenService) VerifyRefreshToken(tokenStr string) *RefreshClaims {
	claims := &RefreshClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return s.refreshSecret, nil
	}, jwt.WithValidMethods(validMethods), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || claims.ID == "" {
		slog.Warn("refresh token verification failed", "error", err)
		return nil
	}
	return claims
}

func parseTTL(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive")
	}
	return d, nil
}
