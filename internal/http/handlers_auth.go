package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/service"
)

// AuthServiceInterface is the login flow as the HTTP layer sees it.
type AuthServiceInterface interface {
	SessionResolver
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlers serves /auth/* and /api/auth/me.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) jar() cookieJar { return cookieJar{domain: h.CookieDomain} }

// Login starts the provider redirect. The optional redirect_uri must be a local path.
// GET /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	returnTo := localPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginLogin(r.Context(), returnTo)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: err})
		return
	}

	jar := h.jar()
	jar.set(w, r, oauthStateCookie, result.State, oauthCookieTTL)
	jar.set(w, r, oauthNonceCookie, result.Nonce, oauthCookieTTL)
	jar.set(w, r, postLoginCookie, returnTo, oauthCookieTTL)
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback finishes the login, binding the identity to a users row and issuing the session
// cookie. GET /auth/callback.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")

	nonce, failure := checkCallback(r, code, state)
	if failure != nil {
		WriteError(w, *failure)
		return
	}

	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{Code: code, State: state, Nonce: nonce})
	if err != nil {
		h.logger().WarnContext(r.Context(), "complete login", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_completion_failed", Err: err})
		return
	}

	jar := h.jar()
	jar.set(w, r, sessionCookie, result.Session.ID, time.Until(result.Session.ExpiresAt))
	jar.clear(w, r, oauthStateCookie)
	jar.clear(w, r, oauthNonceCookie)

	returnTo := "/"
	if c, cookieErr := r.Cookie(postLoginCookie); cookieErr == nil {
		returnTo = localPath(c.Value)
		jar.clear(w, r, postLoginCookie)
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// checkCallback validates the callback parameters against the state and nonce cookies and
// returns the nonce.
func checkCallback(r *http.Request, code, state string) (string, *ErrorParams) {
	bad := func(errCode, msg string) *ErrorParams {
		return &ErrorParams{Code: http.StatusBadRequest, ErrCode: errCode, Err: errors.New(msg)}
	}
	switch {
	case code == "":
		return "", bad("missing_code", "authorization code is required")
	case state == "":
		return "", bad("missing_state", "state parameter is required")
	}
	if c, err := r.Cookie(oauthStateCookie); err != nil || c.Value != state {
		return "", bad("invalid_state", "invalid or missing state parameter")
	}
	c, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		return "", bad("missing_nonce", "missing nonce parameter")
	}
	return c.Value, nil
}

// Logout drops the server-side session and the cookie. API callers get JSON, browsers a
// redirect. POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if logoutErr := h.Svc.Logout(r.Context(), c.Value); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}
	h.jar().clear(w, r, sessionCookie)

	returnTo := r.FormValue("redirect_uri")
	if returnTo == "" {
		returnTo = r.URL.Query().Get("redirect_uri")
	}
	returnTo = localPath(returnTo)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "redirect_to": returnTo})
		return
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

type meUser struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Email       string          `json:"email"`
	Role        domainauth.Role `json:"role"`
}

type meResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *meUser    `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Me reports who the session cookie belongs to. A stale cookie is cleared.
// GET /api/auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		WriteJSON(w, http.StatusOK, meResponse{})
		return
	}
	session, err := h.Svc.GetSession(r.Context(), c.Value)
	if err != nil {
		h.jar().clear(w, r, sessionCookie)
		WriteJSON(w, http.StatusOK, meResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, meResponse{
		Authenticated: true,
		User: &meUser{
			ID:          session.AccountID,
			DisplayName: session.DisplayName,
			Email:       session.Email,
			Role:        session.Role,
		},
		ExpiresAt: &session.ExpiresAt,
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// localPath returns candidate when it is a same-origin path and "/" otherwise.
// Protocol-relative ("//host") and backslash forms are rejected.
func localPath(candidate string) string {
	if candidate == "" || strings.HasPrefix(candidate, "//") || strings.Contains(candidate, `\`) {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
