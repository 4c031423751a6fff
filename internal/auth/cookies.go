package auth

import (
	"net/http"
	"time"

	"storefront/internal/token"
)

// Credential carrier cookie names.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// setAuthCookies installs both carriers: same-site strict, http-only,
// secure outside local development.
func setAuthCookies(w http.ResponseWriter, pair token.Pair, accessTTL, refreshTTL time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearAuthCookies expires both carriers.
func clearAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// bearerOrCookie extracts a token from the named cookie, falling back to
// the Authorization header.
func bearerOrCookie(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
