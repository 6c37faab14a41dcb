package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("auth: not found")

// ErrConflict is returned when a write collides with a unique constraint.
var ErrConflict = errors.New("auth: conflict")

// Machine-readable error codes surfaced to HTTP clients.
const (
	CodeTokenMissing            = "TOKEN_MISSING"
	CodeTokenInvalid            = "TOKEN_INVALID"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeTooManyAttempts         = "TOO_MANY_ATTEMPTS"
	CodeAccountNotVerified      = "ACCOUNT_NOT_VERIFIED"
	CodeAccountNotApproved      = "ACCOUNT_NOT_APPROVED"
	CodeAccountInactive         = "ACCOUNT_INACTIVE"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeOAuthLoginRequired      = "OAUTH_LOGIN_REQUIRED"
	CodeValidation              = "VALIDATION_ERROR"
	CodeInternal                = "INTERNAL_SERVER_ERROR"
)

// Actions name the operation that produced an error.
const (
	ActionLogin          = "LOGIN_USER"
	ActionRefresh        = "REFRESH_TOKEN"
	ActionLogout         = "LOGOUT_USER"
	ActionSessions       = "USER_SESSIONS"
	ActionAuthentication = "AUTHENTICATION"
	ActionAuthorization  = "AUTHORIZATION"
)

// User-facing messages.
const (
	MsgLoginSuccess        = "Login successful"
	MsgLoginFailed         = "Invalid credentials"
	MsgAccountNotVerified  = "Please verify your email first"
	MsgAccountNotApproved  = "Account is not approved by admin"
	MsgAccountInactive     = "Account is inactive"
	MsgTokenRefreshed      = "Token refreshed successfully"
	MsgLogoutSuccess       = "Logout successful"
	MsgLogoutAllSuccess    = "Logged out from all sessions successfully"
	MsgSessionsRetrieved   = "Active sessions retrieved successfully"
	MsgTooManyAttempts     = "Too many login attempts. Try again later"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgInvalidAccessToken  = "Invalid access token"
	MsgRefreshTokenExpired = "Refresh token expired"
	MsgAccessTokenExpired  = "Access token expired"
	MsgAccessTokenRequired = "Access token is required"
	MsgRefreshTokenMissing = "Refresh token not found"
	MsgUserNotFound        = "User not found"
	MsgInsufficientPerms   = "Insufficient permissions"
	MsgOAuthLoginRequired  = "This account was created with a social login. Please sign in with OAuth"
	MsgEitherEmailOrPhone  = "Either email or phone number is required"
	MsgNotBothEmailPhone   = "Please provide either email or phone number, not both"
	MsgEmailInvalid        = "Invalid email format"
	MsgPhoneInvalid        = "Phone number must contain only digits and be between 10-15 characters"
	MsgPasswordRequired    = "Password is required"
)

// FieldError tags a failure with the request field it concerns.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed application error propagated from the core to the HTTP layer.
type Error struct {
	Action  string
	Status  int
	Code    string
	Message string
	Errors  []FieldError
	Data    any

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by code so errors.Is(err, &Error{Code: ...}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithField appends a field-level detail.
func (e *Error) WithField(field, message string) *Error {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
	return e
}

// WithCause records the underlying error without exposing it to clients.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// NewError constructs an application error.
func NewError(action string, status int, code, message string) *Error {
	return &Error{Action: action, Status: status, Code: code, Message: message}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsError(err)
	return ok && appErr.Code == code
}

func errInvalidCredentials(field string) *Error {
	return NewError(ActionLogin, http.StatusUnauthorized, CodeInvalidCredentials, MsgLoginFailed).
		WithField(field, MsgLoginFailed)
}

func errTooManyAttempts() *Error {
	return NewError(ActionLogin, http.StatusTooManyRequests, CodeTooManyAttempts, MsgTooManyAttempts).
		WithField("account", MsgTooManyAttempts)
}

func errValidation(field, message string) *Error {
	return NewError(ActionLogin, http.StatusBadRequest, CodeValidation, message).
		WithField(field, message)
}

func errInternal(action string, err error) *Error {
	return NewError(action, http.StatusInternalServerError, CodeInternal, "Something went wrong").
		WithCause(err)
}
