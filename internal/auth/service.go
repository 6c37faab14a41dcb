package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"atelier.dev/internal/ids"
)

// Login outcomes reported to Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid_credentials"
	OutcomeLocked      = "locked"
	OutcomeGated       = "gated"
	OutcomeOAuthOnly   = "oauth_only"
	OutcomeError       = "error"
	OutcomeExpired     = "expired"
	OutcomeUnknownUser = "user_not_found"
)

// Audit event names.
const (
	EventLoginSuccess   = "auth.login.success"
	EventLoginFailed    = "auth.login.failed"
	EventAccountLocked  = "auth.account.locked"
	EventLogout         = "auth.logout"
	EventLogoutAll      = "auth.logout_all"
	EventSessionsPurged = "auth.sessions.purged"
)

// Metrics receives auth counters.
type Metrics interface {
	LoginAttempt(outcome string)
	AccountLocked()
	TokenRefresh(outcome string)
	SessionsPurged(n int64)
}

// AuditFunc records a security-relevant event.
type AuditFunc func(ctx context.Context, event string, fields map[string]any) error

type nopMetrics struct{}

func (nopMetrics) LoginAttempt(string)  {}
func (nopMetrics) AccountLocked()       {}
func (nopMetrics) TokenRefresh(string)  {}
func (nopMetrics) SessionsPurged(int64) {}

// Service orchestrates login, refresh, logout and session listing.
type Service struct {
	store    Store
	tokens   *TokenIssuer
	verifier *Verifier
	tracker  *AttemptTracker

	now         func() time.Time
	maxAttempts int
	logger      *zap.Logger
	metrics     Metrics
	audit       AuditFunc
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithMaxLoginAttempts overrides the failure count that locks an account.
func WithMaxLoginAttempts(n int) ServiceOption {
	return func(s *Service) error {
		if n < 0 {
			return errors.New("auth: max login attempts must not be negative")
		}
		if n > 0 {
			s.maxAttempts = n
		}
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) error {
		if m != nil {
			s.metrics = m
		}
		return nil
	}
}

// WithAudit sets the audit sink.
func WithAudit(fn AuditFunc) ServiceOption {
	return func(s *Service) error {
		s.audit = fn
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, tokens *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		store:       store,
		now:         time.Now,
		maxAttempts: MaxLoginAttempts,
		logger:      zap.NewNop(),
		metrics:     nopMetrics{},
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	ctx := context.Background()
	svc.tokens = tokens.withClock(svc.now)
	svc.verifier = NewVerifier(store.Users(ctx), store.OAuth(ctx))
	svc.tracker = NewAttemptTracker(store.Attempts(ctx),
		WithTrackerClock(svc.now), WithMaxAttempts(svc.maxAttempts))
	return svc, nil
}

// Tokens exposes the issuer used by the service.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Login authenticates creds and opens a refresh session.
func (s *Service) Login(ctx context.Context, creds LoginCredentials, client ClientInfo) (*LoginResult, error) {
	creds = creds.Normalize()
	field := creds.field()

	user, err := s.verifier.Lookup(ctx, creds)
	if err != nil {
		s.loginFailed(ctx, "", err)
		return nil, err
	}

	locked, err := s.tracker.IsLocked(ctx, user.ID)
	if err != nil {
		return nil, s.loginError(ctx, err)
	}
	if locked {
		err := errTooManyAttempts()
		s.loginFailed(ctx, user.ID, err)
		return nil, err
	}

	if user.OAuthOnly() {
		err := s.verifier.CheckPassword(ctx, user, creds.Password, field)
		s.loginFailed(ctx, user.ID, err)
		return nil, err
	}

	if err := gate(user); err != nil {
		s.loginFailed(ctx, user.ID, err)
		return nil, err
	}

	if err := s.verifier.CheckPassword(ctx, user, creds.Password, field); err != nil {
		nowLocked, recErr := s.tracker.RecordFailure(ctx, user.ID, client)
		if recErr != nil {
			return nil, s.loginError(ctx, recErr)
		}
		if nowLocked {
			err = errTooManyAttempts()
			s.metrics.AccountLocked()
			s.emit(ctx, EventAccountLocked, map[string]any{"user_id": user.ID, "ip": client.IPAddress})
			s.logger.Warn("account locked", zap.String("user_id", user.ID))
		}
		s.loginFailed(ctx, user.ID, err)
		return nil, err
	}

	result, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, s.loginError(ctx, err)
	}
	s.metrics.LoginAttempt(OutcomeSuccess)
	s.emit(ctx, EventLoginSuccess, map[string]any{"user_id": user.ID, "ip": client.IPAddress})
	return result, nil
}

func gate(user *User) error {
	switch {
	case !user.EmailVerified:
		return NewError(ActionLogin, http.StatusForbidden, CodeAccountNotVerified, MsgAccountNotVerified).
			WithField("email", MsgAccountNotVerified)
	case !user.AdminApproved:
		return NewError(ActionLogin, http.StatusForbidden, CodeAccountNotApproved, MsgAccountNotApproved).
			WithField("account", MsgAccountNotApproved)
	case !user.IsActive:
		return NewError(ActionLogin, http.StatusForbidden, CodeAccountInactive, MsgAccountInactive).
			WithField("account", MsgAccountInactive)
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, user *User, client ClientInfo) (*LoginResult, error) {
	accessToken, err := s.tokens.IssueAccessToken(ctx, AccessSubject{
		UserID:     user.ID,
		Email:      user.Email,
		UserTypeID: user.UserTypeID,
	})
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        ids.NewAt(now),
		UserID:    user.ID,
		TokenHash: HashToken(refreshToken),
		IsActive:  true,
		ExpiresAt: now.Add(RefreshTokenTTL),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.tracker.RecordSuccess(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.store.Users(ctx).TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}

	var userType *UserType
	if user.UserTypeID != nil {
		if ut, err := s.store.UserTypes(ctx).Find(ctx, *user.UserTypeID); err == nil {
			userType = ut
		}
	}
	return &LoginResult{
		User: LoginUser{
			UserID:         user.ID,
			UserName:       user.UserName,
			Email:          user.Email,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
			UserType:       userType,
			ProfilePicture: user.ProfilePicture,
			EmailVerified:  user.EmailVerified,
			PhoneVerified:  user.PhoneVerified,
			AdminApproved:  user.AdminApproved,
		},
		Tokens:    TokenPair{AccessToken: accessToken, RefreshToken: refreshToken},
		ExpiresIn: AccessTokenMaxAgeSeconds,
	}, nil
}

func (s *Service) loginFailed(ctx context.Context, userID string, err error) {
	outcome := OutcomeInvalid
	code := CodeInternal
	if appErr, ok := AsError(err); ok {
		code = appErr.Code
		switch appErr.Code {
		case CodeTooManyAttempts:
			outcome = OutcomeLocked
		case CodeAccountNotVerified, CodeAccountNotApproved, CodeAccountInactive:
			outcome = OutcomeGated
		case CodeOAuthLoginRequired:
			outcome = OutcomeOAuthOnly
		case CodeInternal:
			outcome = OutcomeError
		}
	}
	s.metrics.LoginAttempt(outcome)
	fields := map[string]any{"code": code}
	if userID != "" {
		fields["user_id"] = userID
	}
	s.emit(ctx, EventLoginFailed, fields)
}

func (s *Service) loginError(ctx context.Context, err error) error {
	s.metrics.LoginAttempt(OutcomeError)
	s.logger.Error("login failed", zap.Error(err))
	return errInternal(ActionLogin, err)
}

// RefreshAccessToken exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if HasCode(err, CodeTokenExpired) {
			s.metrics.TokenRefresh(OutcomeExpired)
		} else {
			s.metrics.TokenRefresh(OutcomeInvalid)
		}
		return "", err
	}

	valid, err := s.store.Sessions(ctx).IsValid(ctx, claims.UserID, HashToken(refreshToken), s.now())
	if err != nil {
		s.metrics.TokenRefresh(OutcomeError)
		s.logger.Error("refresh session lookup failed", zap.Error(err))
		return "", errInternal(ActionRefresh, err)
	}
	if !valid {
		s.metrics.TokenRefresh(OutcomeInvalid)
		return "", NewError(ActionRefresh, http.StatusUnauthorized, CodeTokenInvalid, MsgInvalidRefreshToken)
	}

	user, err := s.store.Users(ctx).Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.TokenRefresh(OutcomeUnknownUser)
			return "", NewError(ActionRefresh, http.StatusUnauthorized, CodeUserNotFound, MsgUserNotFound)
		}
		s.metrics.TokenRefresh(OutcomeError)
		return "", errInternal(ActionRefresh, err)
	}

	accessToken, err := s.tokens.IssueAccessToken(ctx, AccessSubject{
		UserID:     user.ID,
		Email:      user.Email,
		UserTypeID: user.UserTypeID,
	})
	if err != nil {
		s.metrics.TokenRefresh(OutcomeError)
		return "", errInternal(ActionRefresh, err)
	}
	s.metrics.TokenRefresh(OutcomeSuccess)
	return accessToken, nil
}

// Logout deactivates the session holding refreshToken. It is best effort: failures
// are logged and never returned.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	sessions := s.store.Sessions(ctx)
	sess, err := sessions.FindActiveByTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("logout lookup failed", zap.Error(err))
		}
		return
	}
	if err := sessions.Deactivate(ctx, sess.ID); err != nil {
		s.logger.Warn("logout deactivate failed", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	s.emit(ctx, EventLogout, map[string]any{"user_id": sess.UserID, "session_id": sess.ID})
}

// LogoutAllSessions deactivates every session of userID.
func (s *Service) LogoutAllSessions(ctx context.Context, userID string) error {
	if err := s.store.Sessions(ctx).DeactivateAll(ctx, userID); err != nil {
		return errInternal(ActionLogout, err)
	}
	s.emit(ctx, EventLogoutAll, map[string]any{"user_id": userID})
	return nil
}

// ListActiveSessions returns the active, unexpired sessions of userID, newest first.
func (s *Service) ListActiveSessions(ctx context.Context, userID string) ([]Session, error) {
	list, err := s.store.Sessions(ctx).ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, errInternal(ActionSessions, err)
	}
	if list == nil {
		list = []Session{}
	}
	return list, nil
}

// PurgeExpiredSessions hard-deletes sessions whose expiry has passed.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.Sessions(ctx).PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.metrics.SessionsPurged(n)
	s.emit(ctx, EventSessionsPurged, map[string]any{"count": n})
	s.logger.Info("expired sessions purged", zap.Int64("count", n))
	return n, nil
}

// Authenticate validates an access token. The embedded user type snapshot is trusted.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*AccessClaims, error) {
	if accessToken == "" {
		return nil, NewError(ActionAuthentication, http.StatusUnauthorized, CodeTokenMissing, MsgAccessTokenRequired)
	}
	return s.tokens.VerifyAccessToken(accessToken)
}

func (s *Service) emit(ctx context.Context, event string, fields map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit(ctx, event, fields); err != nil {
		s.logger.Warn("audit event dropped", zap.String("event", event), zap.Error(err))
	}
}

// HashToken returns the hex SHA-256 digest under which a refresh token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
