package httpx

import (
	"net/http"
	"strings"
	"time"
)

const (
	sessionCookie    = "session_id"
	oauthStateCookie = "oauth_state"
	oauthNonceCookie = "oauth_nonce"
	postLoginCookie  = "post_login_redirect"
	// guestCookie carries the anonymous caller's guest marker between submissions.
	guestCookie = "guest_session"

	oauthCookieTTL = 10 * time.Minute
	// guestCookieTTL keeps a guest's submissions together for a month.
	guestCookieTTL = 30 * 24 * time.Hour
)

// cookieJar writes HttpOnly, Lax cookies scoped to one domain. Secure follows the request.
type cookieJar struct {
	domain string
}

func (j cookieJar) set(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, j.cookie(r, name, value, int(ttl/time.Second)))
}

// clear expires the cookie with the same attributes it was set with so every browser drops it.
func (j cookieJar) clear(w http.ResponseWriter, r *http.Request, name string) {
	c := j.cookie(r, name, "", -1)
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, c)
}

func (j cookieJar) cookie(r *http.Request, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
