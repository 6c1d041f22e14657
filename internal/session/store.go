// Package session keeps server-side session state behind a signed session id
// cookie. It implements the gorilla/sessions Store interface so handlers use
// the usual sessions.Session API while values stay out of the browser.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	DefaultName = "sid"

	KeyUserID          = "user_id"
	KeyFederatedUserID = "federated_user_id"
	KeyCSRFToken       = "csrf_token"
	KeyOAuthState      = "oauth_state"
)

var ErrNotFound = errors.New("session not found")

// Backend persists encoded session values by id.
type Backend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type Options struct {
	Name     string
	TTL      time.Duration
	Secure   bool
	Path     string
	Domain   string
	SameSite http.SameSite
}

type Store struct {
	backend Backend
	codecs  []securecookie.Codec
	serial  securecookie.GobEncoder
	name    string
	ttl     time.Duration
	options sessions.Options
}

var _ sessions.Store = (*Store)(nil)

func NewStore(backend Backend, secret []byte, opts Options) (*Store, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteStrictMode
	}

	codecs := securecookie.CodecsFromPairs(secret)
	for _, codec := range codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(opts.TTL.Seconds()))
		}
	}

	return &Store{
		backend: backend,
		codecs:  codecs,
		name:    opts.Name,
		ttl:     opts.TTL,
		options: sessions.Options{
			Path:     opts.Path,
			Domain:   opts.Domain,
			MaxAge:   int(opts.TTL.Seconds()),
			Secure:   opts.Secure,
			HttpOnly: true,
			SameSite: opts.SameSite,
		},
	}, nil
}

func (s *Store) Name() string { return s.name }

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

// Get returns the session cached in the request registry, loading it once.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie. A missing, tampered or
// expired cookie yields a fresh session; only backend failures are errors.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := s.options
	sess.Options = &opts
	sess.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return sess, nil
	}

	data, err := s.backend.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return sess, fmt.Errorf("load session: %w", err)
	}

	if err := s.serial.Deserialize(data, &sess.Values); err != nil {
		return sess, nil
	}
	sess.ID = id
	sess.IsNew = false
	return sess, nil
}

// Save writes the values to the backend and refreshes the cookie. A negative
// MaxAge deletes the record and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	if sess.Options == nil {
		opts := s.options
		sess.Options = &opts
	}

	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.backend.Delete(r.Context(), sess.ID); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		sess.ID = id
	}

	data, err := s.serial.Serialize(sess.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.backend.Save(r.Context(), sess.ID, data, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// Regenerate drops the stored record and clears the values. The next Save
// issues a new id, so an id fixed before login is never promoted.
func (s *Store) Regenerate(r *http.Request, sess *sessions.Session) error {
	if sess.ID != "" {
		if err := s.backend.Delete(r.Context(), sess.ID); err != nil {
			return fmt.Errorf("regenerate session: %w", err)
		}
	}
	for key := range sess.Values {
		delete(sess.Values, key)
	}
	sess.ID = ""
	sess.IsNew = true
	return nil
}

// Destroy removes the session record and expires the cookie.
func (s *Store) Destroy(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	for key := range sess.Values {
		delete(sess.Values, key)
	}
	if sess.Options == nil {
		opts := s.options
		sess.Options = &opts
	}
	sess.Options.MaxAge = -1
	err := s.Save(r, w, sess)
	sess.ID = ""
	return err
}

func StringValue(sess *sessions.Session, key string) string {
	if sess == nil {
		return ""
	}
	v, _ := sess.Values[key].(string)
	return v
}

func newSessionID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
