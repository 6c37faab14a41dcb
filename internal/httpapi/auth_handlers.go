package httpapi

import (
	"net/http"
	"strings"

	"atelier.dev/internal/auth"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.LoginCredentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeAppError(w, r, badRequest(auth.ActionLogin, err))
		return
	}
	if err := creds.Validate(); err != nil {
		writeAppError(w, r, err)
		return
	}

	result, err := a.auth.Login(r.Context(), creds, auth.ClientInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	a.setAuthCookies(w, result.Tokens)
	writeSuccess(w, http.StatusOK, result, auth.MsgLoginSuccess)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromRequest(r)
	if token == "" {
		writeAppError(w, r, auth.NewError(auth.ActionRefresh, http.StatusUnauthorized,
			auth.CodeTokenMissing, auth.MsgRefreshTokenMissing))
		return
	}
	accessToken, err := a.auth.RefreshAccessToken(r.Context(), token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	http.SetCookie(w, a.accessCookie(accessToken, auth.AccessTokenMaxAgeSeconds))
	writeSuccess(w, http.StatusOK, map[string]string{"accessToken": accessToken}, auth.MsgTokenRefreshed)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.auth.Logout(r.Context(), refreshTokenFromRequest(r))
	a.clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, nil, auth.MsgLogoutSuccess)
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := a.auth.LogoutAllSessions(r.Context(), userID); err != nil {
		writeAppError(w, r, err)
		return
	}
	a.clearAuthCookies(w)
	writeSuccess(w, http.StatusOK, nil, auth.MsgLogoutAllSuccess)
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	sessions, err := a.auth.ListActiveSessions(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, sessions, auth.MsgSessionsRetrieved)
}

func (a *API) handlePurgeSessions(w http.ResponseWriter, r *http.Request) {
	n, err := a.auth.PurgeExpiredSessions(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int64{"purged": n}, "Expired sessions purged")
}

func refreshTokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
