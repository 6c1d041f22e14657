package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a credential store record. A nil PasswordHash marks an account
// that can only sign in through Google.
type User struct {
	ID             uuid.UUID
	Email          string
	PasswordHash   *string
	Role           Role
	GoogleID       *string
	ResetTokenHash *string
	ResetExpiresAt *time.Time
	TokenVersion   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UserSummary is the admin-facing view of a user without secrets.
type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	GoogleID  string    `json:"googleId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Summary() UserSummary {
	s := UserSummary{
		ID:        u.ID.String(),
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
	if u.GoogleID != nil {
		s.GoogleID = *u.GoogleID
	}
	return s
}
