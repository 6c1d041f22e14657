package service

import (
	"context"
	"sync"
	"testing"

	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/db"
)

var fastPasswordParams = PasswordParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:        "access-secret",
		JWTRefreshSecret: "refresh-secret",
		JWTAccessTTL:     "15m",
		JWTRefreshTTL:    "168h",
	}
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return m.err
}

func newTestAuthService(t *testing.T, mailer Mailer) (*AuthService, *db.Memory) {
	t.Helper()
	repo := db.NewMemory()
	tokens, err := NewTokenService(testAuthConfig())
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	params := fastPasswordParams
	svc, err := NewAuthService(repo, tokens, testAuthConfig(), AuthOptions{
		Mailer:         mailer,
		FrontendURL:    "https://photos.example.com",
		PasswordParams: &params,
	})
	if err != nil {
		t.Fatalf("NewAuthService() error = %v", err)
	}
	return svc, repo
}
