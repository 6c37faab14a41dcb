package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is a platform account. Registration owns the row; this package only reads it
// and bumps updated_at as a last-login marker.
type User struct {
	ID             string
	UserName       string
	FirstName      string
	LastName       string
	Email          string
	PhoneNumber    string
	ProfilePicture string
	// PasswordHash is nil for accounts created through an OAuth provider.
	PasswordHash  *string
	UserTypeID    *int64
	EmailVerified bool
	PhoneVerified bool
	AdminApproved bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OAuthOnly reports whether the account has no local password.
func (u *User) OAuthOnly() bool {
	return u.PasswordHash == nil
}

// UserType is the role catalogue entry referenced by users.user_type_id.
type UserType struct {
	ID          int64  `json:"userTypeId"`
	TypeName    string `json:"typeName"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// LoginAttempt is the per-user failed login counter.
type LoginAttempt struct {
	ID            string
	UserID        string
	AttemptCount  int
	IsLocked      bool
	LockoutUntil  *time.Time
	LastAttemptAt time.Time
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LockedAt reports whether the record blocks logins at now.
func (a *LoginAttempt) LockedAt(now time.Time) bool {
	if a == nil || !a.IsLocked || a.LockoutUntil == nil {
		return false
	}
	return !now.After(*a.LockoutUntil)
}

// Session is one issued refresh token.
type Session struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	TokenHash string    `json:"-"`
	IsActive  bool      `json:"isActive"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidAt reports whether the session can be used to refresh at now.
func (s *Session) ValidAt(now time.Time) bool {
	return s != nil && s.IsActive && now.Before(s.ExpiresAt)
}

// UserTypeSnapshot is the user type embedded in access tokens. Fields are nullable so an
// unresolved type serializes as {userTypeId: 0, typeName: null, ...}.
type UserTypeSnapshot struct {
	UserTypeID  int64   `json:"userTypeId"`
	TypeName    *string `json:"typeName"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func snapshotOf(ut *UserType) UserTypeSnapshot {
	if ut == nil {
		return UserTypeSnapshot{}
	}
	name, desc, active := ut.TypeName, ut.Description, ut.IsActive
	return UserTypeSnapshot{
		UserTypeID:  ut.ID,
		TypeName:    &name,
		Description: &desc,
		IsActive:    &active,
	}
}

// AccessClaims is the access token payload.
type AccessClaims struct {
	UserID   string           `json:"userId"`
	Email    string           `json:"email"`
	UserType UserTypeSnapshot `json:"userType"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh token payload.
type RefreshClaims struct {
	UserID  string `json:"userId"`
	TokenID string `json:"tokenId"`
	jwt.RegisteredClaims
}

// ClientInfo carries request metadata recorded with attempts and sessions.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// LoginUser is the user projection returned on login.
type LoginUser struct {
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	UserType       *UserType `json:"userType"`
	ProfilePicture string    `json:"profilePicture"`
	EmailVerified  bool      `json:"email_verified"`
	PhoneVerified  bool      `json:"phone_verified"`
	AdminApproved  bool      `json:"admin_approved"`
}

// TokenPair holds both issued tokens.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by Service.Login.
type LoginResult struct {
	User      LoginUser `json:"user"`
	Tokens    TokenPair `json:"tokens"`
	ExpiresIn int       `json:"expiresIn"`
}
