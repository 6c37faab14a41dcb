package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL is the lifetime of access tokens.
	AccessTokenTTL = 15 * time.Minute
	// AccessTokenMaxAgeSeconds is the cookie max-age matching AccessTokenTTL.
	AccessTokenMaxAgeSeconds = int(AccessTokenTTL / time.Second)
	// RefreshTokenTTL is the lifetime of refresh tokens and their sessions.
	RefreshTokenTTL = 7 * 24 * time.Hour
	// RefreshTokenMaxAgeSeconds is the cookie max-age matching RefreshTokenTTL.
	RefreshTokenMaxAgeSeconds = int(RefreshTokenTTL / time.Second)

	defaultIssuer = "atelier"
)

var errMissingSecret = errors.New("auth: token secret is not configured")

// AccessSubject identifies the user an access token is minted for.
type AccessSubject struct {
	UserID     string
	Email      string
	UserTypeID *int64
}

// TokenIssuer signs and verifies access and refresh JWTs with separate HS256 secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	userTypes     UserTypeStore
	now           func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. Secrets must be non-empty and distinct.
func NewTokenIssuer(accessSecret, refreshSecret, issuer string, userTypes UserTypeStore) (*TokenIssuer, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errMissingSecret
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		userTypes:     userTypes,
		now:           time.Now,
	}, nil
}

func (t *TokenIssuer) withClock(fn func() time.Time) *TokenIssuer {
	c := *t
	c.now = fn
	return &c
}

// IssueAccessToken signs an access token embedding a snapshot of the user's type.
// An unresolvable type embeds a zero snapshot instead of failing.
func (t *TokenIssuer) IssueAccessToken(ctx context.Context, subject AccessSubject) (string, error) {
	var ut *UserType
	if subject.UserTypeID != nil && t.userTypes != nil {
		if found, err := t.userTypes.Find(ctx, *subject.UserTypeID); err == nil {
			ut = found
		}
	}
	now := t.now().UTC()
	claims := AccessClaims{
		UserID:   subject.UserID,
		Email:    subject.Email,
		UserType: snapshotOf(ut),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a refresh token carrying a random token id.
func (t *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	now := t.now().UTC()
	claims := RefreshClaims{
		UserID:  userID,
		TokenID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates an access token.
func (t *TokenIssuer) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, claims, t.accessSecret); err != nil {
		return nil, tokenError(ActionAuthentication, err, MsgAccessTokenExpired, MsgInvalidAccessToken)
	}
	if claims.UserID == "" {
		return nil, NewError(ActionAuthentication, http.StatusUnauthorized, CodeTokenInvalid, MsgInvalidAccessToken)
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token.
func (t *TokenIssuer) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := t.parse(token, claims, t.refreshSecret); err != nil {
		return nil, tokenError(ActionRefresh, err, MsgRefreshTokenExpired, MsgInvalidRefreshToken)
	}
	if claims.UserID == "" || claims.TokenID == "" {
		return nil, NewError(ActionRefresh, http.StatusUnauthorized, CodeTokenInvalid, MsgInvalidRefreshToken)
	}
	return claims, nil
}

func (t *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return jwt.ErrTokenMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	return nil
}

func tokenError(action string, err error, expiredMsg, invalidMsg string) *Error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return NewError(action, http.StatusUnauthorized, CodeTokenExpired, expiredMsg).WithCause(err)
	}
	return NewError(action, http.StatusUnauthorized, CodeTokenInvalid, invalidMsg).WithCause(err)
}
