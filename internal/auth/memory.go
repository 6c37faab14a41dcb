package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"atelier.dev/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps all auth state in process memory. It backs local development
// and tests.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[string]*User
	userTypes map[int64]*UserType
	providers map[string][]string
	attempts  map[string]*LoginAttempt
	sessions  map[string]*Session
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		userTypes: make(map[int64]*UserType),
		providers: make(map[string][]string),
		attempts:  make(map[string]*LoginAttempt),
		sessions:  make(map[string]*Session),
	}
}

// PutUser inserts or replaces a user.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	s.users[u.ID] = &u
}

// PutUserType inserts or replaces a user type.
func (s *MemoryStore) PutUserType(ut UserType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userTypes[ut.ID] = &ut
}

// LinkProvider records an OAuth provider for a user.
func (s *MemoryStore) LinkProvider(userID, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[userID] = append(s.providers[userID], provider)
}

// Attempt returns a copy of the attempt record for userID.
func (s *MemoryStore) Attempt(userID string) (LoginAttempt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attempts[userID]
	if !ok {
		return LoginAttempt{}, false
	}
	return *rec, true
}

func (s *MemoryStore) Users(context.Context) UserStore         { return memUsers{s} }
func (s *MemoryStore) UserTypes(context.Context) UserTypeStore { return memUserTypes{s} }
func (s *MemoryStore) OAuth(context.Context) OAuthStore        { return memOAuth{s} }
func (s *MemoryStore) Attempts(context.Context) AttemptStore   { return memAttempts{s} }
func (s *MemoryStore) Sessions(context.Context) SessionStore   { return memSessions{s} }

// Users -----------------------------------------------------------------------
type memUsers struct{ s *MemoryStore }

func (m memUsers) Find(_ context.Context, id string) (*User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	return m.findBy(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

func (m memUsers) FindByPhone(_ context.Context, phone string) (*User, error) {
	return m.findBy(func(u *User) bool { return u.PhoneNumber == phone })
}

func (m memUsers) findBy(match func(*User) bool) (*User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m memUsers) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.UpdatedAt = at
	return nil
}

// User types ------------------------------------------------------------------
type memUserTypes struct{ s *MemoryStore }

func (m memUserTypes) Find(_ context.Context, id int64) (*UserType, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ut, ok := m.s.userTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ut
	return &cp, nil
}

// OAuth -----------------------------------------------------------------------
type memOAuth struct{ s *MemoryStore }

func (m memOAuth) ProvidersForUser(_ context.Context, userID string) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]string(nil), m.s.providers[userID]...), nil
}

// Attempts --------------------------------------------------------------------
type memAttempts struct{ s *MemoryStore }

func (m memAttempts) Find(_ context.Context, userID string) (*LoginAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.attempts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m memAttempts) IncrementFailure(_ context.Context, userID string, at time.Time, client ClientInfo) (*LoginAttempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.attempts[userID]
	if !ok {
		rec = &LoginAttempt{ID: ids.NewAt(at), UserID: userID, CreatedAt: at}
		m.s.attempts[userID] = rec
	}
	if rec.IsLocked && rec.LockoutUntil != nil && at.After(*rec.LockoutUntil) {
		rec.AttemptCount = 0
		rec.IsLocked = false
		rec.LockoutUntil = nil
	}
	rec.AttemptCount++
	rec.LastAttemptAt = at
	rec.IPAddress = client.IPAddress
	rec.UserAgent = client.UserAgent
	rec.UpdatedAt = at
	cp := *rec
	return &cp, nil
}

func (m memAttempts) Lock(_ context.Context, userID string, until, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.attempts[userID]
	if !ok {
		return ErrNotFound
	}
	rec.IsLocked = true
	rec.LockoutUntil = &until
	rec.UpdatedAt = at
	return nil
}

func (m memAttempts) Reset(_ context.Context, userID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rec, ok := m.s.attempts[userID]
	if !ok {
		return nil
	}
	rec.AttemptCount = 0
	rec.IsLocked = false
	rec.LockoutUntil = nil
	rec.UpdatedAt = at
	return nil
}

// Sessions --------------------------------------------------------------------
type memSessions struct{ s *MemoryStore }

func (m memSessions) Create(_ context.Context, sess *Session) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.sessions {
		if existing.TokenHash == sess.TokenHash {
			return ErrConflict
		}
	}
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	cp := *sess
	m.s.sessions[sess.ID] = &cp
	return nil
}

func (m memSessions) FindActiveByTokenHash(_ context.Context, hash string) (*Session, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sess := range m.s.sessions {
		if sess.TokenHash == hash && sess.IsActive {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m memSessions) IsValid(_ context.Context, userID, hash string, now time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sess := range m.s.sessions {
		if sess.TokenHash == hash && sess.UserID == userID && sess.ValidAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m memSessions) Deactivate(_ context.Context, sessionID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sess, ok := m.s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.IsActive = false
	return nil
}

func (m memSessions) DeactivateAll(_ context.Context, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, sess := range m.s.sessions {
		if sess.UserID == userID {
			sess.IsActive = false
		}
	}
	return nil
}

func (m memSessions) ListActive(_ context.Context, userID string, now time.Time) ([]Session, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []Session
	for _, sess := range m.s.sessions {
		if sess.UserID == userID && sess.ValidAt(now) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m memSessions) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, sess := range m.s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(m.s.sessions, id)
			n++
		}
	}
	return n, nil
}
