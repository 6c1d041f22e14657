package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	Server     ServerConfig
	DBAdapter  string
	Postgres   PostgresConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Google     GoogleConfig
	SMTP       SMTPConfig
	Contentful ContentfulConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	TLSCertPath    string
	TLSKeyPath     string
	StaticDir      string
	FrontendURL    string
	LogLevel       string
	// TrustedProxies are the reverse proxy IPs or CIDRs allowed to set
	// X-Forwarded-For. Empty trusts no proxy.
	TrustedProxies []string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// RedisConfig selects the session backend. An empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret        string
	JWTRefreshSecret string
	JWTAccessTTL     string
	JWTRefreshTTL    string
	SessionSecret    string
	SessionTTL       string
	AllowSignup      string
	CookieSecure     string
	CookieSameSite   string
	CookiePath       string
	CookieDomain     string
	AdminEmail       string
	AdminPassword    string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (c GoogleConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.CallbackURL != ""
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

type ContentfulConfig struct {
	SpaceID         string
	EnvironmentID   string
	DeliveryToken   string
	ManagementToken string
}

func (c ContentfulConfig) Configured() bool {
	return c.SpaceID != "" && c.DeliveryToken != "" && c.ManagementToken != ""
}

type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   string
}

func Load() (Config, error) {
	smtpPort, err := strconv.Atoi(getenv("SMTP_PORT", "587"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	loginAttempts, err := strconv.Atoi(getenv("LOGIN_RATE_LIMIT", "5"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "3000"),
			Environment:    strings.ToLower(getenv("APP_ENV", "development")),
			TLSCertPath:    os.Getenv("SSL_CERT_PATH"),
			TLSKeyPath:     os.Getenv("SSL_KEY_PATH"),
			StaticDir:      getenv("STATIC_DIR", "public"),
			FrontendURL:    strings.TrimRight(getenv("FRONTEND_URL", "https://localhost:3000"), "/"),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		DBAdapter: getenv("DB_ADAPTER", "postgres"),
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("JWT_SECRET"),
			JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
			JWTAccessTTL:     getenv("JWT_ACCESS_TTL", "15m"),
			JWTRefreshTTL:    getenv("JWT_REFRESH_TTL", "168h"),
			SessionSecret:    os.Getenv("SESSION_SECRET"),
			SessionTTL:       getenv("SESSION_TTL", "1h"),
			AllowSignup:      os.Getenv("ALLOW_SIGNUP"),
			CookieSecure:     os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite:   getenv("AUTH_COOKIE_SAMESITE", "strict"),
			CookiePath:       getenv("AUTH_COOKIE_PATH", "/"),
			CookieDomain:     os.Getenv("AUTH_COOKIE_DOMAIN"),
			AdminEmail:       os.Getenv("ADMIN_EMAIL"),
			AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		},
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			CallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM_EMAIL"),
			Secure:   strings.EqualFold(os.Getenv("SMTP_SECURE"), "true"),
		},
		Contentful: ContentfulConfig{
			SpaceID:         os.Getenv("CONTENTFUL_SPACE_ID"),
			EnvironmentID:   getenv("CONTENTFUL_ENVIRONMENT_ID", "master"),
			DeliveryToken:   os.Getenv("CONTENTFUL_DELIVERY_TOKEN"),
			ManagementToken: os.Getenv("CONTENTFUL_MANAGEMENT_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: loginAttempts,
			LoginWindow:   getenv("LOGIN_RATE_WINDOW", "15m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Production() bool {
	return c.Server.Environment == "production" || c.Server.Environment == "prod"
}

// Validate reports every missing required variable at once. Signing secrets
// are always required; integrations only in production.
func (c Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("JWT_SECRET", c.Auth.JWTSecret)
	require("JWT_REFRESH_SECRET", c.Auth.JWTRefreshSecret)
	require("SESSION_SECRET", c.Auth.SessionSecret)

	if c.Production() {
		require("GOOGLE_CLIENT_ID", c.Google.ClientID)
		require("GOOGLE_CLIENT_SECRET", c.Google.ClientSecret)
		require("GOOGLE_CALLBACK_URL", c.Google.CallbackURL)
		require("SMTP_HOST", c.SMTP.Host)
		require("SMTP_USER", c.SMTP.Username)
		require("SMTP_PASS", c.SMTP.Password)
		require("SMTP_FROM_EMAIL", c.SMTP.From)
		require("CONTENTFUL_SPACE_ID", c.Contentful.SpaceID)
		require("CONTENTFUL_DELIVERY_TOKEN", c.Contentful.DeliveryToken)
		require("CONTENTFUL_MANAGEMENT_TOKEN", c.Contentful.ManagementToken)
		require("SSL_KEY_PATH", c.Server.TLSKeyPath)
		require("SSL_CERT_PATH", c.Server.TLSCertPath)
	}

	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid TRUSTED_PROXIES entry: %q", proxy)
			}
		}
	}

	switch c.DBAdapter {
	case "postgres":
		if c.Postgres.DatabaseURL == "" && (c.Postgres.User == "" || c.Postgres.Database == "") {
			missing = append(missing, "DATABASE_URL or PGUSER/PGDATABASE")
		}
	case "memory":
		if c.Production() {
			return fmt.Errorf("DB_ADAPTER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unsupported DB_ADAPTER: %s (supported: postgres, memory)", c.DBAdapter)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
