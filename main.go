package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/client"
	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/db"
	"github.com/PeraltaFrian/photo-sharing/internal/handler"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var level slog.LevelVar
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level})))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		level.Set(slog.LevelDebug)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	users, closeUsers, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUsers()

	sessionBackend, closeSessions, err := openSessionBackend(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeSessions()

	tokens, err := service.NewTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	var mailer service.Mailer
	if cfg.SMTP.Configured() {
		smtp, err := client.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			return err
		}
		mailer = smtp
	} else {
		slog.Warn("SMTP not configured; password reset requests answer 503")
	}

	authService, err := service.NewAuthService(users, tokens, cfg.Auth, service.AuthOptions{
		Mailer:      mailer,
		FrontendURL: cfg.Server.FrontendURL,
	})
	if err != nil {
		return err
	}

	if cfg.Auth.AdminEmail != "" || cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	sessionTTL, err := time.ParseDuration(cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	cookies := authService.CookieConfig()
	sessions, err := session.NewStore(sessionBackend, []byte(cfg.Auth.SessionSecret), session.Options{
		TTL:    sessionTTL,
		Secure: cookies.Secure,
		Path:   cookies.Path,
		Domain: cookies.Domain,
	})
	if err != nil {
		return err
	}

	var google handler.OAuthProvider
	if cfg.Google.Configured() {
		provider, err := service.NewGoogleProvider(ctx, cfg.Google)
		if err != nil {
			return err
		}
		google = provider
	} else {
		slog.Warn("Google sign-in not configured")
	}

	var content service.ContentStore
	if cfg.Contentful.Configured() {
		content = client.NewContentfulClient(cfg.Contentful)
	} else {
		slog.Warn("Contentful not configured; photo endpoints answer 503")
	}

	loginWindow, err := time.ParseDuration(cfg.RateLimit.LoginWindow)
	if err != nil {
		return fmt.Errorf("invalid LOGIN_RATE_WINDOW: %w", err)
	}

	tlsEnabled := cfg.Server.TLSCertPath != "" && cfg.Server.TLSKeyPath != ""
	router := handler.NewRouter(handler.Deps{
		Auth:           authService,
		Admin:          service.NewAdminService(users),
		Photos:         service.NewPhotoService(content),
		Sessions:       sessions,
		Google:         google,
		LoginAttempts:  cfg.RateLimit.LoginAttempts,
		LoginWindow:    loginWindow,
		SecureCookies:  cookies.Secure || tlsEnabled,
		StaticDir:      cfg.Server.StaticDir,
		TrustedProxies: cfg.Server.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "tls", tlsEnabled, "environment", cfg.Server.Environment)
		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertPath, cfg.Server.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openUserStore(ctx context.Context, cfg config.Config) (service.UserRepository, func(), error) {
	switch cfg.DBAdapter {
	case "memory":
		slog.Warn("using in-memory credential store; accounts are lost on restart")
		return db.NewMemory(), func() {}, nil
	default:
		pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := &db.Postgres{Pool: pool}
		if err := pg.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := pg.EnsureUserSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure user schema: %w", err)
		}
		slog.Info("connected to postgres")
		return pg, pool.Close, nil
	}
}

func openSessionBackend(ctx context.Context, cfg config.RedisConfig) (session.Backend, func(), error) {
	if cfg.Addr == "" {
		slog.Warn("REDIS_ADDR not set; sessions are kept in memory")
		return session.NewMemoryBackend(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	backend := session.NewRedisBackend(rdb)
	if err := backend.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("connected to redis", "addr", cfg.Addr)
	return backend, func() { _ = rdb.Close() }, nil
}
