package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("APP_ENV", "development")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "15m", cfg.Auth.JWTAccessTTL)
	assert.Equal(t, "168h", cfg.Auth.JWTRefreshTTL)
	assert.Equal(t, "1h", cfg.Auth.SessionTTL)
	assert.Equal(t, 5, cfg.RateLimit.LoginAttempts)
	assert.Equal(t, "master", cfg.Contentful.EnvironmentID)
	assert.False(t, cfg.Production())
}

func TestLoadRequiresSigningSecrets(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestLoadProductionRequiresIntegrations(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://photo@localhost/photo")

	_, err := Load()
	require.Error(t, err)
	for _, name := range []string{"GOOGLE_CLIENT_ID", "SMTP_HOST", "CONTENTFUL_SPACE_ID", "SSL_CERT_PATH"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestLoadRejectsMemoryAdapterInProduction(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownAdapter(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_ADAPTER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_ADAPTER")
}

func TestLoadPostgresNeedsConnectionInfo(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_ADAPTER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGUSER", "")
	t.Setenv("PGDATABASE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadTrustedProxies(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Server.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 172.16.0.0/12,")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.Server.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "proxy.internal")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}
