package auth

import (
	"context"
	"errors"
	"time"
)

const (
	// MaxLoginAttempts is the failure count at which an account locks.
	MaxLoginAttempts = 10

	lockoutStep = 5 * time.Minute
	lockoutCap  = 30 * time.Minute
)

// LockoutDuration returns the lock length after count consecutive failures.
func LockoutDuration(count int) time.Duration {
	if count <= 0 {
		return 0
	}
	d := time.Duration(count) * lockoutStep
	if d > lockoutCap {
		return lockoutCap
	}
	return d
}

// AttemptTracker counts failed logins per user and applies lockouts.
type AttemptTracker struct {
	store       AttemptStore
	now         func() time.Time
	maxAttempts int
}

// TrackerOption configures AttemptTracker behavior.
type TrackerOption func(*AttemptTracker)

// WithTrackerClock overrides the tracker time source.
func WithTrackerClock(fn func() time.Time) TrackerOption {
	return func(t *AttemptTracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// WithMaxAttempts overrides MaxLoginAttempts.
func WithMaxAttempts(n int) TrackerOption {
	return func(t *AttemptTracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// NewAttemptTracker constructs an AttemptTracker.
func NewAttemptTracker(store AttemptStore, opts ...TrackerOption) *AttemptTracker {
	t := &AttemptTracker{store: store, now: time.Now, maxAttempts: MaxLoginAttempts}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsLocked reports whether the user is inside an active lockout window.
func (t *AttemptTracker) IsLocked(ctx context.Context, userID string) (bool, error) {
	rec, err := t.store.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.LockedAt(t.now()), nil
}

// RecordFailure counts one failed password check. It reports whether this failure
// locked the account.
func (t *AttemptTracker) RecordFailure(ctx context.Context, userID string, client ClientInfo) (bool, error) {
	now := t.now()
	rec, err := t.store.IncrementFailure(ctx, userID, now, client)
	if err != nil {
		return false, err
	}
	if rec.AttemptCount < t.maxAttempts {
		return false, nil
	}
	if err := t.store.Lock(ctx, userID, now.Add(LockoutDuration(rec.AttemptCount)), now); err != nil {
		return false, err
	}
	return true, nil
}

// RecordSuccess clears the counter and any lock.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, userID string) error {
	return t.store.Reset(ctx, userID, t.now())
}
