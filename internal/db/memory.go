package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Memory is the in-process credential store used for development
// (DB_ADAPTER=memory) and tests. It reports absence and duplicates with the
// same errors as Postgres so callers need a single code path.
type Memory struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*model.User
	byEmail map[string]uuid.UUID
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:   map[uuid.UUID]*model.User{},
		byEmail: map[string]uuid.UUID{},
		now:     time.Now,
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) CreateUser(_ context.Context, email string, passwordHash *string, role model.Role, googleID *string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[email]; ok {
		return nil, duplicate("users_email_key")
	}
	if googleID != nil {
		for _, u := range m.users {
			if u.GoogleID != nil && *u.GoogleID == *googleID {
				return nil, duplicate("users_google_id_key")
			}
		}
	}

	now := m.now()
	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: cloneString(passwordHash),
		Role:         role,
		GoogleID:     cloneString(googleID),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	m.byEmail[email] = user.ID
	return cloneUser(user), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneUser(m.users[id]), nil
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneUser(user), nil
}

func (m *Memory) GetUserByResetToken(_ context.Context, tokenHash string, now time.Time) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.ResetTokenHash == nil || *user.ResetTokenHash != tokenHash {
			continue
		}
		if user.ResetExpiresAt == nil || !user.ResetExpiresAt.After(now) {
			continue
		}
		return cloneUser(user), nil
	}
	return nil, pgx.ErrNoRows
}

func (m *Memory) SetPasswordResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return m.update(id, func(u *model.User) {
		u.ResetTokenHash = &tokenHash
		u.ResetExpiresAt = &expiresAt
	})
}

func (m *Memory) ResetPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return m.update(id, func(u *model.User) {
		u.PasswordHash = &passwordHash
		u.ResetTokenHash = nil
		u.ResetExpiresAt = nil
	})
}

func (m *Memory) ListUsers(context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]model.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, *cloneUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Email < users[j].Email
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (m *Memory) UpdateUserRole(_ context.Context, id uuid.UUID, role model.Role) error {
	return m.update(id, func(u *model.User) {
		u.Role = role
	})
}

func (m *Memory) LinkGoogleID(_ context.Context, id uuid.UUID, googleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for otherID, u := range m.users {
		if otherID != id && u.GoogleID != nil && *u.GoogleID == googleID {
			return duplicate("users_google_id_key")
		}
	}
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.GoogleID = &googleID
	user.UpdatedAt = m.now()
	return nil
}

func (m *Memory) update(id uuid.UUID, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(user)
	user.UpdatedAt = m.now()
	return nil
}

func duplicate(constraint string) error {
	return &pgconn.PgError{
		Code:           uniqueViolationCode,
		Message:        "duplicate key value violates unique constraint",
		ConstraintName: constraint,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.PasswordHash = cloneString(u.PasswordHash)
	c.GoogleID = cloneString(u.GoogleID)
	c.ResetTokenHash = cloneString(u.ResetTokenHash)
	if u.ResetExpiresAt != nil {
		t := *u.ResetExpiresAt
		c.ResetExpiresAt = &t
	}
	return &c
}
