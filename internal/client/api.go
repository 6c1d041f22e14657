// Package client holds the outbound clients: Contentful, SMTP and an API
// client for the photo sharing backend. The API client keeps the access
// token, refreshes it through the refreshToken cookie and retries a rejected
// request once. Concurrent refreshes collapse into one call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh-token"
	logoutPath  = "/auth/logout"

	refreshTimeout = 15 * time.Second
)

var ErrLoginRequired = errors.New("login required")

type TokenStore interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func (s *MemoryTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.SetToken("")
}

// FileTokenStore persists the token in a file readable only by the owner.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *FileTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	return os.Chmod(s.path, 0o600)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type APIClient struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	group      singleflight.Group
	now        func() time.Time

	// OnLoginRequired runs after the token is cleared because the session
	// could not be refreshed.
	OnLoginRequired func()
}

type APIOption func(*APIClient)

func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) { c.httpClient = hc }
}

func WithClock(now func() time.Time) APIOption {
	return func(c *APIClient) { c.now = now }
}

func NewAPIClient(baseURL string, store TokenStore, opts ...APIOption) (*APIClient, error) {
	if store == nil {
		store = &MemoryTokenStore{}
	}
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

func (c *APIClient) Token() string { return c.store.Token() }

// Login signs in with email and password and keeps the returned token. The
// refresh cookie lands in the client's cookie jar.
func (c *APIClient) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, loginPath, body, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: status=%d %s", resp.StatusCode, readError(resp.Body))
	}

	token, err := decodeToken(resp.Body)
	if err != nil {
		return err
	}
	return c.store.SetToken(token)
}

func (c *APIClient) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, logoutPath, nil, nil, c.store.Token())
	if err == nil {
		resp.Body.Close()
	}
	if clearErr := c.store.Clear(); clearErr != nil {
		return clearErr
	}
	return err
}

// Do sends an authenticated request. An already expired token is refreshed
// before sending; a 401 triggers one refresh and one retry. When neither
// works the token is cleared and ErrLoginRequired is returned.
func (c *APIClient) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Response, error) {
	token := c.store.Token()
	if token != "" && isTokenExpired(token, c.now()) {
		refreshed, err := c.refresh(ctx, token)
		if err != nil {
			return nil, c.loginRequired(err)
		}
		token = refreshed
	}

	resp, err := c.send(ctx, method, path, body, header, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	refreshed, err := c.refresh(ctx, token)
	if err != nil {
		return nil, c.loginRequired(err)
	}

	retry, err := c.send(ctx, method, path, body, header, refreshed)
	if err != nil {
		return nil, err
	}
	if retry.StatusCode == http.StatusUnauthorized {
		drain(retry)
		return nil, c.loginRequired(errors.New("request rejected after refresh"))
	}
	return retry, nil
}

// refresh exchanges the refresh cookie for a new access token. Callers whose
// failed token was already replaced get the replacement without a new call.
func (c *APIClient) refresh(ctx context.Context, failed string) (string, error) {
	if current := c.store.Token(); current != "" && current != failed {
		return current, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		if current := c.store.Token(); current != "" && current != failed {
			return current, nil
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		resp, err := c.send(refreshCtx, http.MethodPost, refreshPath, nil, nil, "")
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("refresh failed: status=%d %s", resp.StatusCode, readError(resp.Body))
		}
		token, err := decodeToken(resp.Body)
		if err != nil {
			return "", err
		}
		if err := c.store.SetToken(token); err != nil {
			return "", err
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *APIClient) loginRequired(cause error) error {
	_ = c.store.Clear()
	if c.OnLoginRequired != nil {
		c.OnLoginRequired()
	}
	return fmt.Errorf("%w: %v", ErrLoginRequired, cause)
}

func (c *APIClient) send(ctx context.Context, method, path string, body []byte, header http.Header, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.httpClient.Do(req)
}

// isTokenExpired reads exp without verifying the signature. Tokens that
// cannot be decoded are left for the server to judge.
func isTokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

func decodeToken(r io.Reader) (string, error) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.Token == "" {
		return "", errors.New("token response has no token")
	}
	return payload.Token, nil
}

func readError(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
