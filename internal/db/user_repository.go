package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FullName     string
	Avatar       string
	PasswordHash string
	RefreshToken sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate holds the mutable profile columns. An empty Avatar keeps the
// current one.
type ProfileUpdate struct {
	FullName string
	Username string
	Email    string
	Avatar   string
}

const userColumns = `id, username, email, full_name, avatar, password_hash, refresh_token, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar,
		&user.PasswordHash, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, full_name, avatar, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.Avatar, user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if classified := classifyUniqueViolation(err); classified != err {
			return classified
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// ExistsByEmailOrUsername reports whether another user already holds email or
// username. Pass uuid.Nil as exclude when no user should be skipped.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string, exclude uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (email = $1 OR username = $2) AND id <> $3
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, username, exclude).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user uniqueness: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*User, error) {
	query := `
		UPDATE users
		SET full_name = $2, username = $3, email = $4,
			avatar = COALESCE(NULLIF($5, ''), avatar), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, upd.FullName, upd.Username, upd.Email, upd.Avatar))
	if err != nil {
		if classified := classifyUniqueViolation(err); classified != err {
			return nil, classified
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

// SetRefreshToken replaces the user's single live refresh token.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE users SET refresh_token = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, token)
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET refresh_token = NULL WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
