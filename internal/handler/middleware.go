package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	authUserKey  = "auth_user"
	authTokenKey = "auth_token"
)

// Authenticate resolves the caller from, in order, a federated session, a
// bearer header or the access token cookie. A presented token that fails
// verification is 403; no credential at all is 401.
func Authenticate(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := federatedUser(c, authService); user != nil {
			c.Set(authUserKey, user)
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(service.AccessCookieName)
		}
		if token == "" {
			recordAuthEvent("authenticate", "missing")
			abortJSON(c, http.StatusUnauthorized, "Access token required")
			return
		}

		user, err := authService.Authenticate(token)
		if err != nil {
			slog.Info("access token rejected", "path", c.Request.URL.Path, "error", err)
			recordAuthEvent("authenticate", "invalid")
			abortJSON(c, http.StatusForbidden, "Invalid or expired token")
			return
		}

		c.Set(authUserKey, user)
		c.Set(authTokenKey, token)
		c.Next()
	}
}

func federatedUser(c *gin.Context, authService *service.AuthService) *model.AuthUser {
	id := session.StringValue(getSession(c), session.KeyFederatedUserID)
	if id == "" {
		return nil
	}
	user, err := authService.UserByID(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			slog.Error("federated session lookup failed", "user_id", id, "error", err)
		}
		return nil
	}
	return &model.AuthUser{ID: user.ID.String(), Email: user.Email, Role: user.Role}
}

// RequireRole admits only callers whose role equals role.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user == nil || user.Role != role {
			abortJSON(c, http.StatusForbidden, "Access denied: requires "+string(role)+" role")
			return
		}
		c.Next()
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// RequestLogger writes one structured record per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if user := GetAuthUser(c); user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		slog.Log(c.Request.Context(), level, "request", attrs...)
	}
}

// Recovery turns a panic into a generic 500 after logging it.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, recovered any) {
		slog.Error("panic recovered", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", recovered)
		abortJSON(c, http.StatusInternalServerError, serverErrorMessage)
	})
}
