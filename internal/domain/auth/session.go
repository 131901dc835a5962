package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gearyard/internal/domain/user"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrUserRequired    = errors.New("auth: user is required")
	ErrTTLInvalid      = errors.New("auth: ttl must be positive")
	ErrSessionNotFound = errors.New("auth: session not found")
)

// Token is an opaque bearer token handed out at login.
type Token string

// Session ties a token to a marketplace account. Roles are snapshotted at
// login; an account that gains the seller role mid-session picks it up on the
// next login, since route guards read the stored user, not the session.
type Session struct {
	Token     Token
	UserID    user.ID
	Roles     []user.Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

type CreateSessionParams struct {
	Token  Token
	UserID user.ID
	Roles  []user.Role
	TTL    time.Duration
	Now    time.Time
}

func NewSession(params CreateSessionParams) (*Session, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Session{
		Token:     Token(strings.TrimSpace(string(params.Token))),
		UserID:    params.UserID,
		Roles:     append([]user.Role(nil), params.Roles...),
		CreatedAt: now,
		ExpiresAt: now.Add(params.TTL),
	}, nil
}

func (p CreateSessionParams) validate() error {
	if strings.TrimSpace(string(p.Token)) == "" {
		return ErrTokenRequired
	}
	if strings.TrimSpace(string(p.UserID)) == "" {
		return ErrUserRequired
	}
	if p.TTL <= 0 {
		return ErrTTLInvalid
	}
	return nil
}

// Expired reports whether the session is past its deadline. A session
// expiring exactly at the instant counts as expired.
func (s *Session) Expired(at time.Time) bool {
	if at.IsZero() {
		at = time.Now()
	}
	return !s.ExpiresAt.After(at.UTC())
}

// SessionStore persists sessions. Implementations expire sessions lazily;
// Get never returns one past its deadline.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, token Token) (*Session, error)
	Delete(ctx context.Context, token Token) error
	DeleteByUser(ctx context.Context, userID user.ID) error
}
