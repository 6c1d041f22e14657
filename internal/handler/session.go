package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const sessionKey = "session"

var errNoSession = errors.New("session not loaded")

// SessionMiddleware loads the request's session before any handler runs.
// Nothing is written back unless a handler saves it.
func SessionMiddleware(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, store.Name())
		if err != nil {
			slog.Error("session load failed", "path", c.Request.URL.Path, "error", err)
			abortJSON(c, http.StatusInternalServerError, "Session error")
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func getSession(c *gin.Context) *sessions.Session {
	if value, ok := c.Get(sessionKey); ok {
		if sess, ok := value.(*sessions.Session); ok {
			return sess
		}
	}
	return nil
}
