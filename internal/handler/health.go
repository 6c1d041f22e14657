package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/gin-gonic/gin"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} model.HealthResponse
// @Router /health [get]
func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, model.HealthResponse{
		Status: "OK",
		TS:     time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready godoc
// @Summary Readiness probe
// @Description Checks the credential store and the session backend.
// @Tags health
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 503 {object} model.StatusResponse
// @Router /ready [get]
func Ready(deps map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				slog.Warn("readiness check failed", "dependency", name, "error", err)
				c.JSON(http.StatusServiceUnavailable, model.StatusResponse{Status: "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, model.StatusResponse{Status: "ready"})
	}
}
