package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/config"
	"github.com/PeraltaFrian/photo-sharing/internal/db"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
	tmpl "github.com/PeraltaFrian/photo-sharing/internal/template"
	"github.com/google/uuid"
)

const (
	AccessCookieName  = "token"
	RefreshCookieName = "refreshToken"

	resetTokenBytes = 32
	resetTokenTTL   = time.Hour
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrMissingToken      = errors.New("missing token")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	ErrMisconfigured     = errors.New("auth config invalid")
	ErrUnavailable       = errors.New("service unavailable")
)

// UserRepository is the credential store. Absence is reported as pgx.ErrNoRows
// and duplicates as a unique violation.
type UserRepository interface {
	CreateUser(ctx context.Context, email string, passwordHash *string, role model.Role, googleID *string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	SetPasswordResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role model.Role) error
	LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error
	Ping(ctx context.Context) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type CookieConfig struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Tokens is the pair handed to a client after a successful sign-in.
type Tokens struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	repo        UserRepository
	tokens      *TokenService
	hasher      *PasswordHasher
	mailer      Mailer
	frontendURL string
	resetBody   string
	allowSignup bool
	cookieCfg   CookieConfig
	now         func() time.Time
}

type AuthOptions struct {
	Mailer         Mailer
	FrontendURL    string
	ResetEmailBody string
	PasswordParams *PasswordParams
}

func NewAuthService(repo UserRepository, tokens *TokenService, cfg config.AuthConfig, opts AuthOptions) (*AuthService, error) {
	allowSignup, err := parseBool(cfg.AllowSignup, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ALLOW_SIGNUP", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	params := DefaultPasswordParams
	if opts.PasswordParams != nil {
		params = *opts.PasswordParams
	}

	return &AuthService{
		repo:        repo,
		tokens:      tokens,
		hasher:      NewPasswordHasher(params),
		mailer:      opts.Mailer,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		resetBody:   opts.ResetEmailBody,
		allowSignup: allowSignup,
		cookieCfg: CookieConfig{
			Path:     cookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
		},
		now: time.Now,
	}, nil
}

func (s *AuthService) AllowSignup() bool          { return s.allowSignup }
func (s *AuthService) CookieConfig() CookieConfig { return s.cookieCfg }
func (s *AuthService) Tokens() *TokenService      { return s.tokens }

func (s *AuthService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: ADMIN_EMAIL/ADMIN_PASSWORD are required", ErrMisconfigured)
	}

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = s.repo.CreateUser(ctx, email, &hash, model.RoleAdmin, nil)
	if db.IsUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if !s.allowSignup {
		return nil, ErrForbidden
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, email, &hash, model.RoleUser, nil)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return user, nil
}

// Login checks the credentials. Unknown email, wrong password and accounts
// without a local password all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Tokens, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			slog.Info("login rejected", "reason", "unknown email")
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		reason := "wrong password"
		if !user.HasPassword() {
			reason = "no local password"
		}
		slog.Info("login rejected", "reason", reason, "user_id", user.ID)
		return nil, ErrUnauthorized
	}

	return s.IssueTokens(user)
}

func (s *AuthService) IssueTokens(user *model.User) (*Tokens, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &Tokens{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh issues a new access token for the holder of a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrMissingToken
	}

	claims := s.tokens.VerifyRefreshToken(refreshToken)
	if claims == nil {
		return "", ErrInvalidToken
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return "", ErrInvalidToken
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	return s.tokens.IssueAccessToken(user)
}

func (s *AuthService) Authenticate(accessToken string) (*model.AuthUser, error) {
	return s.tokens.VerifyAccessToken(accessToken)
}

// UserByID resolves a stored user id, as kept in a session.
func (s *AuthService) UserByID(ctx context.Context, id string) (*model.User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	user, err := s.repo.GetUserByID(ctx, parsed)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset mails a one hour reset link when the account exists.
// The caller sees the same result either way; delivery errors are only logged.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}
	if s.mailer == nil {
		return fmt.Errorf("%w: mailer not configured", ErrUnavailable)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(resetTokenTTL)
	if err := s.repo.SetPasswordResetToken(ctx, user.ID, hashToken(token), expiresAt); err != nil {
		return err
	}

	body := tmpl.RenderResetEmail(s.resetBody, tmpl.ResetData{
		Email:     user.Email,
		URL:       s.resetURL(token),
		ExpiresAt: expiresAt,
		ExpiresIn: resetTokenTTL,
	})
	if err := s.mailer.Send(ctx, user.Email, tmpl.ResetSubject, body); err != nil {
		slog.Error("password reset mail failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return ErrInvalidInput
	}

	user, err := s.repo.GetUserByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if db.IsNoRows(err) {
			return ErrResetTokenInvalid
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.ResetPassword(ctx, user.ID, hash); err != nil {
		if db.IsNoRows(err) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}

// FederatedLogin finds or creates the account for a verified Google identity.
// New accounts have no local password.
func (s *AuthService) FederatedLogin(ctx context.Context, identity *GoogleIdentity) (*model.User, error) {
	if identity == nil || identity.Subject == "" {
		return nil, ErrUnauthorized
	}
	email := normalizeEmail(identity.Email)
	if email == "" || !identity.EmailVerified {
		return nil, ErrUnauthorized
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.GoogleID == nil {
			if err := s.repo.LinkGoogleID(ctx, user.ID, identity.Subject); err != nil {
				return nil, err
			}
			subject := identity.Subject
			user.GoogleID = &subject
		}
		return user, nil
	case db.IsNoRows(err):
		subject := identity.Subject
		user, err = s.repo.CreateUser(ctx, email, nil, model.RoleUser, &subject)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
		return user, nil
	default:
		return nil, err
	}
}

func (s *AuthService) resetURL(token string) string {
	return s.frontendURL + "/password-reset.html?token=" + url.QueryEscape(token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "", "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func newResetToken() (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
