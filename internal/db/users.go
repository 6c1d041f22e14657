package db

import (
	"context"
	"time"

	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, role, google_id, reset_token_hash, reset_expires_at, token_version, created_at, updated_at`

func (db *Postgres) EnsureUserSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			google_id TEXT UNIQUE,
			reset_token_hash TEXT,
			reset_expires_at TIMESTAMPTZ,
			token_version INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS users_reset_token_hash_idx ON users(reset_token_hash) WHERE reset_token_hash IS NOT NULL`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, email string, passwordHash *string, role model.Role, googleID *string) (*model.User, error) {
	query := `
		INSERT INTO users (id, email, password_hash, role, google_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + userColumns
	return scanUser(db.Pool.QueryRow(ctx, query, uuid.New(), email, passwordHash, string(role), googleID))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, email))
}

func (db *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, id))
}

// GetUserByResetToken only matches tokens that are still valid at now.
func (db *Postgres) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE reset_token_hash = $1 AND reset_expires_at > $2
	`
	return scanUser(db.Pool.QueryRow(ctx, query, tokenHash, now))
}

func (db *Postgres) SetPasswordResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return execOne(ctx, db, query, id, tokenHash, expiresAt)
}

func (db *Postgres) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return execOne(ctx, db, query, id, passwordHash)
}

func (db *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (db *Postgres) UpdateUserRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	return execOne(ctx, db, query, id, string(role))
}

func (db *Postgres) LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	query := `UPDATE users SET google_id = $2, updated_at = NOW() WHERE id = $1`
	return execOne(ctx, db, query, id, googleID)
}

func execOne(ctx context.Context, db *Postgres, query string, args ...any) error {
	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.GoogleID,
		&user.ResetTokenHash,
		&user.ResetExpiresAt,
		&user.TokenVersion,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return &user, nil
}
