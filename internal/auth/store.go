package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// RoleAdmin grants access to the admin area.
const RoleAdmin = "admin"

// User is an account that can sign in.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore reads and writes users and user_roles.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.user(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (s *UserStore) UserByID(ctx context.Context, id string) (*User, error) {
	return s.user(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users WHERE id = $1`, id)
}

func (s *UserStore) user(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	return &u, nil
}

// Roles lists the user's roles in name order.
func (s *UserStore) Roles(ctx context.Context, userID string) ([]string, error) {
	var roles []string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(array_agg(role ORDER BY role), '{}')
		FROM user_roles WHERE user_id = $1`, userID).Scan(pq.Array(&roles))
	if err != nil {
		return nil, fmt.Errorf("auth: load roles: %w", err)
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

// CreateUser inserts a user, or updates the password of an existing one with
// the same email.
func (s *UserStore) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES (lower($1), $2)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
		RETURNING id, email, password_hash, created_at`,
		strings.TrimSpace(email), passwordHash).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return &u, nil
}

// AssignRole grants role to the user. Granting twice is a no-op.
func (s *UserStore) AssignRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING`, userID, role)
	if err != nil {
		return fmt.Errorf("auth: assign role: %w", err)
	}
	return nil
}
