package service

import (
	"errors"
	"testing"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(role model.Role) *model.User {
	return &model.User{ID: uuid.New(), Email: "a@example.com", Role: role, TokenVersion: 2}
}

func TestNewTokenServiceRequiresSecrets(t *testing.T) {
	_, err := NewTokenService(config.AuthConfig{JWTRefreshSecret: "r"})
	assert.True(t, errors.Is(err, ErrMisconfigured))

	_, err = NewTokenService(config.AuthConfig{JWTSecret: "a"})
	assert.True(t, errors.Is(err, ErrMisconfigured))

	_, err = NewTokenService(config.AuthConfig{JWTSecret: "a", JWTRefreshSecret: "r", JWTAccessTTL: "soon"})
	assert.True(t, errors.Is(err, ErrMisconfigured))
}

func TestTokenDefaults(t *testing.T) {
	s, err := NewTokenService(config.AuthConfig{JWTSecret: "a", JWTRefreshSecret: "r"})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, s.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, s.RefreshTTL())
}

func TestAccessTokenRoundTrip(t *testing.T) {
	s, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)
	user := testUser(model.RoleAdmin)

	token, err := s.IssueAccessToken(user)
	require.NoError(t, err)

	identity, err := s.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, &model.AuthUser{ID: user.ID.String(), Email: user.Email, Role: model.RoleAdmin}, identity)
}

func TestAccessTokenExpires(t *testing.T) {
	s, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	token, err := s.IssueAccessToken(testUser(model.RoleUser))
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	_, err = s.VerifyAccessToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	s, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)
	user := testUser(model.RoleUser)

	token, err := s.IssueRefreshToken(user)
	require.NoError(t, err)

	claims := s.VerifyRefreshToken(token)
	require.NotNil(t, claims)
	assert.Equal(t, user.ID.String(), claims.ID)
	assert.Equal(t, 2, claims.TokenVersion)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokensDoNotCrossVerify(t *testing.T) {
	s, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)
	user := testUser(model.RoleUser)

	access, _ := s.IssueAccessToken(user)
	refresh, _ := s.IssueRefreshToken(user)

	assert.Nil(t, s.VerifyRefreshToken(access))
	_, err = s.VerifyAccessToken(refresh)
	assert.Error(t, err)
}

func TestVerifyRefreshTokenRejectsGarbage(t *testing.T) {
	s, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	assert.Nil(t, s.VerifyRefreshToken(""))
	assert.Nil(t, s.VerifyRefreshToken("not.a.jwt"))

	now := time.Now()
	s.SetClock(func() time.Time { return now })
	token, _ := s.IssueRefreshToken(testUser(model.RoleUser))
	now = now.Add(8 * 24 * time.Hour)
	assert.Nil(t, s.VerifyRefreshToken(token))
}

func TestVerifyAccessTokenRejectsOtherAlgorithms(t *testing.T) {
	s, err := NewTokenService(testAuthConfig())
	require.NoError(t, err)

	claims := accessClaims{
		ID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)
	_, err = s.VerifyAccessToken(hs512)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.VerifyAccessToken(none)
	assert.Error(t, err)
}
