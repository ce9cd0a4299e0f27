package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// SessionCookie holds the checkout session key of a browser.
	SessionCookie = "checkout_session"
	// SessionHeader carries the session key for non-browser clients.
	SessionHeader = "X-Session-Key"
)

// sessionKey returns the client's session key, or "" when it has none.
func sessionKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(SessionHeader)); key != "" {
		return key
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// ensureSession returns the client's session key, issuing a new session
// cookie first if the client has none.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if key := sessionKey(r); key != "" {
		return key
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    key,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}
