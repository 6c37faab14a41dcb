package httpapi

import (
	"net/http"
	"slices"
	"strings"

	"atelier.dev/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// requireAuth verifies the access token from the Authorization header or, failing
// that, the access cookie, and attaches its claims to the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := accessTokenFromRequest(r)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		claims, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUserType admits only callers whose access token carries one of the given
// user type ids. It must run after authentication.
func RequireUserType(allowed ...int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			typeID, ok := auth.UserTypeIDFromContext(r.Context())
			if !ok {
				writeAppError(w, r, auth.NewError(auth.ActionAuthentication, http.StatusUnauthorized,
					auth.CodeTokenMissing, auth.MsgAccessTokenRequired))
				return
			}
			if !slices.Contains(allowed, typeID) {
				writeAppError(w, r, auth.NewError(auth.ActionAuthorization, http.StatusForbidden,
					auth.CodeInsufficientPermissions, auth.MsgInsufficientPerms))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessTokenFromRequest(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		return extractBearerToken(header)
	}
	if c, err := r.Cookie(accessCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	return "", auth.NewError(auth.ActionAuthentication, http.StatusUnauthorized,
		auth.CodeTokenMissing, auth.MsgAccessTokenRequired)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.NewError(auth.ActionAuthentication, http.StatusUnauthorized,
			auth.CodeTokenMissing, auth.MsgAccessTokenRequired)
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", auth.NewError(auth.ActionAuthentication, http.StatusUnauthorized,
			auth.CodeTokenInvalid, auth.MsgInvalidAccessToken)
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", auth.NewError(auth.ActionAuthentication, http.StatusUnauthorized,
			auth.CodeTokenMissing, auth.MsgAccessTokenRequired)
	}
	return token, nil
}
