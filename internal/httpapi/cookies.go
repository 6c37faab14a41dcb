package httpapi

import (
	"net/http"
	"time"

	"atelier.dev/internal/auth"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// The access cookie stays readable by the browser app; the refresh cookie does not.
func (a *API) accessCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     accessCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func (a *API) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func (a *API) setAuthCookies(w http.ResponseWriter, tokens auth.TokenPair) {
	http.SetCookie(w, a.accessCookie(tokens.AccessToken, auth.AccessTokenMaxAgeSeconds))
	http.SetCookie(w, a.refreshCookie(tokens.RefreshToken, auth.RefreshTokenMaxAgeSeconds))
}

func (a *API) clearAuthCookies(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{a.accessCookie("", -1), a.refreshCookie("", -1)} {
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}
