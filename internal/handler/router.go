package handler

import (
	"log/slog"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
)

const loginRateLimitMessage = "Too many login attempts."

// Deps is everything the router needs. Google may be nil when sign-in with
// Google is not configured.
type Deps struct {
	Auth     *service.AuthService
	Admin    *service.AdminService
	Photos   *service.PhotoService
	Sessions *session.Store
	Google   OAuthProvider

	LoginAttempts int
	LoginWindow   time.Duration

	// SecureCookies marks the CSRF cookies Secure and turns on HSTS.
	SecureCookies  bool
	StaticDir      string
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty trusts none and ClientIP is the peer address.
	TrustedProxies []string
	// CSRFExempt lists path prefixes the CSRF guard lets through.
	CSRFExempt     []string
	// Ready is checked by GET /ready; nil checks the auth store and sessions.
	Ready          map[string]Pinger
}

// NewRouter builds the engine. Global interceptors run in this order, each
// either passing the request on or answering it:
//
//	recovery, request log, metrics, security headers, session load, CSRF guard
//
// Rate limiting, authentication and role checks are attached per route.
func NewRouter(deps Deps) *gin.Engine {
	exempt := deps.CSRFExempt
	if exempt == nil {
		exempt = []string{"/auth/"}
	}
	ready := deps.Ready
	if ready == nil {
		ready = map[string]Pinger{"credential_store": deps.Auth, "session_store": deps.Sessions}
	}

	csrf := NewCSRF(deps.Sessions, deps.SecureCookies, exempt...)
	loginLimiter := NewRateLimiter(deps.LoginAttempts, deps.LoginWindow)

	authHandler := NewAuthHandler(deps.Auth, deps.Sessions, deps.Google)
	adminHandler := NewAdminHandler(deps.Admin)
	photoHandler := NewPhotoHandler(deps.Photos)

	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		slog.Error("invalid trusted proxies; trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		Recovery(),
		RequestLogger(),
		Metrics(),
		SecurityHeaders(deps.SecureCookies),
		SessionMiddleware(deps.Sessions),
		csrf.Guard(),
	)

	authenticate := Authenticate(deps.Auth)
	requireAdmin := RequireRole(model.RoleAdmin)

	r.GET("/health", Health)
	r.GET("/ready", Ready(ready))
	r.GET("/metrics", MetricsHandler())
	r.GET("/openapi.json", OpenAPIDoc)
	r.GET("/csrf-token", csrf.Issue("csrfToken"))

	auth := r.Group("/auth")
	{
		auth.GET("/csrf-token", csrf.Issue("_csrf"))
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", loginLimiter.Middleware(loginRateLimitMessage), authHandler.Login)
		auth.POST("/refresh-token", authHandler.RefreshToken)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", authenticate, authHandler.Me)
		auth.GET("/google", authHandler.GoogleLogin)
		auth.GET("/google/callback", authHandler.GoogleCallback)
		auth.POST("/password-reset/request", authHandler.RequestPasswordReset)
		auth.POST("/password-reset/reset", authHandler.ResetPassword)
	}

	admin := r.Group("/admin", authenticate, requireAdmin)
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:id/role", adminHandler.UpdateRole)
	}

	photos := r.Group("/photos", authenticate)
	{
		photos.GET("", photoHandler.ListPhotos)
		photos.POST("", photoHandler.UploadPhoto)
		photos.DELETE("/:id", requireAdmin, photoHandler.DeletePhoto)
		photos.PUT("/:id/likes", photoHandler.UpdateLikes)
	}

	r.NoRoute(StaticFiles(deps.StaticDir))
	return r
}
