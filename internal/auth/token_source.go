package auth

import (
	"net/http"
	"strings"
)

// CookieName is the session cookie set by the login collaborator.
const CookieName = "auth-token"

// TokenFromRequest extracts the raw session token from a request. The cookie
// is authoritative; a Bearer header or token query parameter is accepted for
// websocket and non-browser clients.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}
