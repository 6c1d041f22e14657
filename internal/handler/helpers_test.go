package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/client"
	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/db"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/PeraltaFrian/photo-sharing/internal/service"
	"github.com/PeraltaFrian/photo-sharing/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var fastPasswordParams = service.PasswordParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeContentStore struct {
	mu      sync.Mutex
	photos  []model.Photo
	uploads []model.NewPhoto
	likes   map[string]int
	deleted []string
	err     error
}

func (s *fakeContentStore) ListPhotos(context.Context) ([]model.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photos, s.err
}

func (s *fakeContentStore) UploadPhoto(_ context.Context, p model.NewPhoto) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.uploads = append(s.uploads, p)
	return "entry1", nil
}

func (s *fakeContentStore) DeletePhoto(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "missing" {
		return client.ErrContentNotFound
	}
	s.deleted = append(s.deleted, id)
	return s.err
}

func (s *fakeContentStore) UpdateLikes(_ context.Context, id string, likes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "missing" {
		return client.ErrContentNotFound
	}
	if s.likes == nil {
		s.likes = map[string]int{}
	}
	s.likes[id] = likes
	return s.err
}

type fakeOAuth struct {
	identity *service.GoogleIdentity
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*service.GoogleIdentity, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return f.identity, nil
}

// failingSaveBackend loads normally but cannot persist.
type failingSaveBackend struct {
	*session.MemoryBackend
}

func (b failingSaveBackend) Save(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

type testEnv struct {
	t       *testing.T
	router  *gin.Engine
	repo    *db.Memory
	auth    *service.AuthService
	mailer  *fakeMailer
	content *fakeContentStore
	google  *fakeOAuth
	cookies map[string]*http.Cookie
}

type envOptions struct {
	backend        session.Backend
	noGoogle       bool
	noContent      bool
	staticDir      string
	ready          map[string]Pinger
	trustedProxies []string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, envOptions{})
}

func newTestEnvWith(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authCfg := config.AuthConfig{
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     "15m",
		JWTRefreshTTL:    "168h",
	}
	tokens, err := service.NewTokenService(authCfg)
	require.NoError(t, err)

	repo := db.NewMemory()
	mailer := &fakeMailer{}
	params := fastPasswordParams
	auth, err := service.NewAuthService(repo, tokens, authCfg, service.AuthOptions{
		Mailer:         mailer,
		FrontendURL:    "https://photos.example.com",
		PasswordParams: &params,
	})
	require.NoError(t, err)

	backend := opts.backend
	if backend == nil {
		backend = session.NewMemoryBackend()
	}
	store, err := session.NewStore(backend, []byte("session-secret"), session.Options{Secure: true})
	require.NoError(t, err)

	env := &testEnv{
		t:       t,
		repo:    repo,
		auth:    auth,
		mailer:  mailer,
		content: &fakeContentStore{},
		google: &fakeOAuth{identity: &service.GoogleIdentity{
			Subject:       "google-sub-1",
			Email:         "g@example.com",
			EmailVerified: true,
		}},
		cookies: map[string]*http.Cookie{},
	}

	deps := Deps{
		Auth:          auth,
		Admin:         service.NewAdminService(repo),
		Photos:        service.NewPhotoService(env.content),
		Sessions:      store,
		Google:        env.google,
		LoginAttempts: 5,
		LoginWindow:   15 * time.Minute,
		SecureCookies: true,
		StaticDir:     opts.staticDir,
		Ready:         opts.ready,

		TrustedProxies: opts.trustedProxies,
	}
	if opts.noGoogle {
		deps.Google = nil
	}
	if opts.noContent {
		deps.Photos = service.NewPhotoService(nil)
	}
	env.router = NewRouter(deps)
	return env
}

func (e *testEnv) send(req *http.Request) *httptest.ResponseRecorder {
	req.RemoteAddr = "192.0.2.10:4321"
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return rec
}

func (e *testEnv) json(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return e.send(req)
}

func (e *testEnv) register(email, password string) {
	e.t.Helper()
	rec := e.json(http.MethodPost, "/auth/register", model.CredentialsRequest{Email: email, Password: password}, nil)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	rec := e.json(http.MethodPost, "/auth/login", model.CredentialsRequest{Email: email, Password: password}, nil)
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp model.TokenResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (e *testEnv) loginAdmin() string {
	e.t.Helper()
	require.NoError(e.t, e.auth.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass"))
	return e.login("admin@example.com", "admin-pass")
}

func (e *testEnv) csrfToken() string {
	e.t.Helper()
	rec := e.json(http.MethodGet, "/csrf-token", nil, nil)
	require.Equal(e.t, http.StatusOK, rec.Code)
	var resp model.CSRFTokenResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.CSRFToken
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func multipartPhoto(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "sunset.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}
