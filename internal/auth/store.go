package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	UserTypes(ctx context.Context) UserTypeStore
	OAuth(ctx context.Context) OAuthStore
	Attempts(ctx context.Context) AttemptStore
	Sessions(ctx context.Context) SessionStore
}

// UserStore reads accounts owned by registration.
type UserStore interface {
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	// TouchLastLogin bumps updated_at; there is no dedicated last-login column.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// UserTypeStore reads the role catalogue.
type UserTypeStore interface {
	Find(ctx context.Context, id int64) (*UserType, error)
}

// OAuthStore reads provider links for OAuth-created accounts.
type OAuthStore interface {
	ProvidersForUser(ctx context.Context, userID string) ([]string, error)
}

// AttemptStore persists failed login counters.
type AttemptStore interface {
	Find(ctx context.Context, userID string) (*LoginAttempt, error)
	// IncrementFailure atomically bumps the counter, restarting it when a previous
	// lock has expired at at, and returns the updated record.
	IncrementFailure(ctx context.Context, userID string, at time.Time, client ClientInfo) (*LoginAttempt, error)
	Lock(ctx context.Context, userID string, until, at time.Time) error
	Reset(ctx context.Context, userID string, at time.Time) error
}

// SessionStore manages refresh token sessions. Tokens are addressed by their digest.
type SessionStore interface {
	Create(ctx context.Context, sess *Session) error
	// FindActiveByTokenHash checks the active flag only; expiry is left to the caller.
	FindActiveByTokenHash(ctx context.Context, hash string) (*Session, error)
	IsValid(ctx context.Context, userID, hash string, now time.Time) (bool, error)
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateAll(ctx context.Context, userID string) error
	ListActive(ctx context.Context, userID string, now time.Time) ([]Session, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
