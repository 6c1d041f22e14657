package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFTokenIssue(t *testing.T) {
	env := newTestEnv(t)

	token := env.csrfToken()
	assert.NotEmpty(t, token)
	cookie := env.cookies["csrfToken"]
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.False(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	assert.Equal(t, token, env.csrfToken(), "token is stable within a session")

	rec := env.json(http.MethodGet, "/auth/csrf-token", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.cookies["_csrf"])
	assert.Equal(t, token, env.cookies["_csrf"].Value)
}

func TestCSRFGuardOnCookieAuthenticatedRequests(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	env.login("alice@example.com", "pw-12345")

	body := model.LikesRequest{Likes: intPtr(2)}

	rec := env.json(http.MethodPut, "/photos/entry1/likes", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Invalid CSRF token", resp.Error)
	assert.Equal(t, "EBADCSRFTOKEN", resp.Code)

	token := env.csrfToken()

	rec = env.json(http.MethodPut, "/photos/entry1/likes", body, http.Header{"X-CSRF-Token": []string{"wrong"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, name := range []string{"X-CSRF-Token", "CSRF-Token", "X-XSRF-Token"} {
		rec = env.json(http.MethodPut, "/photos/entry1/likes", body, http.Header{name: []string{token}})
		assert.Equal(t, http.StatusOK, rec.Code, name)
	}
}

func TestCSRFFormField(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	env.login("alice@example.com", "pw-12345")
	token := env.csrfToken()

	reader, contentType := multipartPhoto(t, map[string]string{
		"name":        "Sunset",
		"description": "Beach",
		"_csrf":       token,
	}, []byte("image-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/photos", reader)
	req.Header.Set("Content-Type", contentType)

	rec := env.send(req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCSRFSkippedForBearerAndAuthRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	token := env.login("alice@example.com", "pw-12345")

	rec := env.json(http.MethodPut, "/photos/entry1/likes", model.LikesRequest{Likes: intPtr(1)}, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.json(http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFSafeMethodsPass(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "pw-12345")
	env.login("alice@example.com", "pw-12345")

	rec := env.json(http.MethodGet, "/photos", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func intPtr(v int) *int { return &v }
