package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/gin-gonic/gin"
)

const serverErrorMessage = "Server error"

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrResetTokenInvalid, http.StatusBadRequest},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrMissingToken, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusForbidden},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrUnavailable, http.StatusServiceUnavailable},
}

var defaultMessages = map[error]string{
	service.ErrInvalidInput:      "Invalid request",
	service.ErrResetTokenInvalid: "Invalid or expired token.",
	service.ErrUnauthorized:      "Unauthorized",
	service.ErrMissingToken:      "Access token required",
	service.ErrInvalidToken:      "Invalid or expired token",
	service.ErrForbidden:         "Forbidden",
	service.ErrNotFound:          "Not found",
	service.ErrConflict:          "Already exists",
	service.ErrUnavailable:       "Service unavailable",
}

// writeServiceError maps a service error to its status. messages overrides
// the body per error; the nil key overrides the 500 body.
func writeServiceError(c *gin.Context, err error, messages map[error]string) {
	for _, entry := range errorStatus {
		if !errors.Is(err, entry.err) {
			continue
		}
		msg, ok := messages[entry.err]
		if !ok {
			msg = defaultMessages[entry.err]
		}
		if entry.status >= http.StatusInternalServerError {
			slog.Warn("request failed", "path", c.Request.URL.Path, "status", entry.status, "error", err)
		}
		c.AbortWithStatusJSON(entry.status, model.ErrorResponse{Error: msg})
		return
	}

	msg, ok := messages[nil]
	if !ok {
		msg = serverErrorMessage
	}
	slog.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: msg})
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Error: msg})
}
