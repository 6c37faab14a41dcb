package auth

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
)

// LoginCredentials is the login request body. Exactly one of Email or PhoneNumber is set.
type LoginCredentials struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Password    string `json:"password"`
}

// Normalize trims surrounding whitespace from identifiers.
func (c LoginCredentials) Normalize() LoginCredentials {
	c.Email = strings.TrimSpace(c.Email)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
	return c
}

// Validate checks the shape of the request before any lookup.
func (c LoginCredentials) Validate() error {
	c = c.Normalize()
	switch {
	case c.Email != "" && c.PhoneNumber != "":
		return errValidation("email", MsgNotBothEmailPhone)
	case c.Email == "" && c.PhoneNumber == "":
		return errValidation("email", MsgEitherEmailOrPhone)
	}
	if c.Email != "" {
		if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
			return errValidation("email", MsgEmailInvalid)
		}
	}
	// Placeholders are rejected later as INVALID_CREDENTIALS so they look like any other miss.
	if c.PhoneNumber != "" && !IsOAuthPlaceholderPhone(c.PhoneNumber) {
		if n := len(c.PhoneNumber); n < 10 || n > 15 || !isDigits(c.PhoneNumber) {
			return errValidation("phoneNumber", MsgPhoneInvalid)
		}
	}
	if c.Password == "" {
		return errValidation("password", MsgPasswordRequired)
	}
	return nil
}

func (c LoginCredentials) field() string {
	if c.PhoneNumber != "" {
		return "phoneNumber"
	}
	return "email"
}

// Verifier resolves a user from credentials and checks the password. It never records attempts.
type Verifier struct {
	users UserStore
	oauth OAuthStore
}

// NewVerifier constructs a Verifier. oauth may be nil.
func NewVerifier(users UserStore, oauth OAuthStore) *Verifier {
	return &Verifier{users: users, oauth: oauth}
}

// Lookup finds the account addressed by creds.
func (v *Verifier) Lookup(ctx context.Context, creds LoginCredentials) (*User, error) {
	creds = creds.Normalize()
	field := creds.field()
	if creds.PhoneNumber != "" && IsOAuthPlaceholderPhone(creds.PhoneNumber) {
		return nil, errInvalidCredentials(field)
	}
	var (
		user *User
		err  error
	)
	if creds.PhoneNumber != "" {
		user, err = v.users.FindByPhone(ctx, creds.PhoneNumber)
	} else {
		user, err = v.users.FindByEmail(ctx, creds.Email)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errInvalidCredentials(field)
		}
		return nil, errInternal(ActionLogin, err)
	}
	return user, nil
}

// CheckPassword verifies password against the account's stored credential.
func (v *Verifier) CheckPassword(ctx context.Context, user *User, password, field string) error {
	if user.OAuthOnly() {
		appErr := NewError(ActionLogin, http.StatusBadRequest, CodeOAuthLoginRequired, MsgOAuthLoginRequired).
			WithField(field, MsgOAuthLoginRequired)
		if v.oauth != nil {
			if providers, err := v.oauth.ProvidersForUser(ctx, user.ID); err == nil && len(providers) > 0 {
				appErr.Data = map[string]any{"providers": providers}
			}
		}
		return appErr
	}
	if !ComparePassword(*user.PasswordHash, password) {
		return errInvalidCredentials(field)
	}
	return nil
}
