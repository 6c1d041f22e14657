package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	csrfCodeBadToken = "EBADCSRFTOKEN"
	csrfFormField    = "_csrf"
	csrfTokenBytes   = 32
)

var csrfHeaders = []string{"X-CSRF-Token", "CSRF-Token", "X-XSRF-Token"}

// CSRF binds a synchronizer token to the session and checks it on unsafe
// requests that rely on cookies.
type CSRF struct {
	store  *session.Store
	secure bool
	exempt []string
}

func NewCSRF(store *session.Store, secure bool, exemptPrefixes ...string) *CSRF {
	return &CSRF{store: store, secure: secure, exempt: exemptPrefixes}
}

// Guard rejects POST/PUT/PATCH/DELETE without a matching token. Bearer
// requests and exempt path prefixes pass through.
func (x *CSRF) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !unsafeMethod(c.Request.Method) || bearerToken(c) != "" || x.isExempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		expected := session.StringValue(getSession(c), session.KeyCSRFToken)
		got := submittedCSRFToken(c)
		if expected == "" || got == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
			slog.Info("csrf check failed", "method", c.Request.Method, "path", c.Request.URL.Path, "has_token", got != "")
			c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{
				Error: "Invalid CSRF token",
				Code:  csrfCodeBadToken,
			})
			return
		}
		c.Next()
	}
}

// Issue hands out the session's token, creating one when needed, and mirrors
// it in a script-readable cookie named cookieName.
func (x *CSRF) Issue(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := getSession(c)
		if sess == nil {
			abortJSON(c, http.StatusInternalServerError, "Session error")
			return
		}

		token := session.StringValue(sess, session.KeyCSRFToken)
		if token == "" {
			var err error
			token, err = newCSRFToken()
			if err != nil {
				writeServiceError(c, err, nil)
				return
			}
			sess.Values[session.KeyCSRFToken] = token
		}
		if err := x.store.Save(c.Request, c.Writer, sess); err != nil {
			slog.Error("session save failed", "path", c.Request.URL.Path, "error", err)
			abortJSON(c, http.StatusInternalServerError, "Session error")
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, token, 0, "/", "", x.secure, false)
		c.JSON(http.StatusOK, model.CSRFTokenResponse{CSRFToken: token})
	}
}

func (x *CSRF) isExempt(path string) bool {
	for _, prefix := range x.exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func submittedCSRFToken(c *gin.Context) string {
	for _, name := range csrfHeaders {
		if v := c.GetHeader(name); v != "" {
			return v
		}
	}
	return c.PostForm(csrfFormField)
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func newCSRFToken() (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
