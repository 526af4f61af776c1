package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Users is the account lookup Service needs.
type Users interface {
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	Roles(ctx context.Context, userID string) ([]string, error)
}

// Session is a signed-in user.
type Session struct {
	Token     string    `json:"token,omitempty"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
	tokenID   string
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool {
	for _, r := range s.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

type Service struct {
	users   Users
	tokens  *Tokens
	revoker Revoker
	logger  *logging.Logger
}

func NewService(users Users, tokens *Tokens, revoker Revoker, logger *logging.Logger) *Service {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{users: users, tokens: tokens, revoker: revoker, logger: logger}
}

// SignIn checks the password and issues a session token. Unknown emails and
// wrong passwords look the same to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("sign-in rejected", "email", email)
		return nil, ErrInvalidCredentials
	}
	roles, err := s.users.Roles(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed in", "user_id", user.ID)
	return &Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     roles,
		ExpiresAt: claims.ExpiresAt.Time,
		tokenID:   claims.ID,
	}, nil
}

// SignOut revokes the token's session. Signing out an invalid token is not an
// error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	return s.revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := s.revoker.Revoke(ctx, tokenID, until); err != nil {
		return fmt.Errorf("auth: sign out: %w", err)
	}
	return nil
}

// Session resolves a token to its live session with current roles.
func (s *Service) Session(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	user, err := s.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	roles, err := s.users.Roles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     roles,
		ExpiresAt: claims.ExpiresAt.Time,
		tokenID:   claims.ID,
	}, nil
}

// RequireAdmin returns the session when it belongs to an admin. A valid
// session without the admin role is signed out and ErrAccessDenied returned.
func (s *Service) RequireAdmin(ctx context.Context, token string) (*Session, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.IsAdmin() {
		return sess, nil
	}
	if err := s.revoke(ctx, sess.tokenID, sess.ExpiresAt); err != nil {
		s.logger.Error("failed to revoke non-admin session", "error", err, "user_id", sess.UserID)
	}
	s.logger.Warn("non-admin session signed out", "user_id", sess.UserID)
	return nil, ErrAccessDenied
}

type sessionKey struct{}

// WithSession stores the admin session on ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session set by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok
}
