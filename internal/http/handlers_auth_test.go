package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/service"
)

// stubAuth serves sessions from a map and records login calls.
type stubAuth struct {
	sessions    map[string]*domainauth.Session
	beginErr    error
	completeErr error

	gotReturnTo string
	gotComplete service.CompleteLoginInput
	loggedOut   []string
}

func newStubAuth(sessions ...*domainauth.Session) *stubAuth {
	s := &stubAuth{sessions: map[string]*domainauth.Session{}}
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
	}
	return s
}

func testSession(id string, role domainauth.Role) *domainauth.Session {
	return &domainauth.Session{
		ID:          id,
		AccountID:   id + "-account",
		Email:       id + "@jobmatch.test",
		DisplayName: "Priya " + id,
		Role:        role,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func (s *stubAuth) GetSession(_ context.Context, id string) (*domainauth.Session, error) {
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, errors.New("session not found")
}

func (s *stubAuth) BeginLogin(_ context.Context, returnTo string) (*service.BeginLoginResult, error) {
	s.gotReturnTo = returnTo
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &service.BeginLoginResult{AuthURL: "https://idp.test/authorize?state=st-1", State: "st-1", Nonce: "n-1"}, nil
}

func (s *stubAuth) CompleteLogin(_ context.Context, in service.CompleteLoginInput) (*service.CompleteLoginResult, error) {
	s.gotComplete = in
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return &service.CompleteLoginResult{Session: *testSession("fresh", domainauth.RoleUser)}, nil
}

func (s *stubAuth) Logout(_ context.Context, id string) error {
	s.loggedOut = append(s.loggedOut, id)
	delete(s.sessions, id)
	return nil
}

func cookiesByName(t *testing.T, w *httptest.ResponseRecorder) map[string]*http.Cookie {
	t.Helper()
	resp := w.Result()
	defer resp.Body.Close()
	out := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestLogin_SetsFlowCookiesAndRedirects(t *testing.T) {
	svc := newStubAuth()
	h := &AuthHandlers{Svc: svc, CookieDomain: "jobmatch.test"}

	req := httptest.NewRequest(http.MethodGet, "/auth/login?redirect_uri=/task/42/results", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	h.Login(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://idp.test/authorize?state=st-1", w.Header().Get("Location"))
	assert.Equal(t, "/task/42/results", svc.gotReturnTo)

	cookies := cookiesByName(t, w)
	require.Len(t, cookies, 3)
	assert.Equal(t, "st-1", cookies[oauthStateCookie].Value)
	assert.Equal(t, "n-1", cookies[oauthNonceCookie].Value)
	assert.Equal(t, "/task/42/results", cookies[postLoginCookie].Value)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly, c.Name)
		assert.True(t, c.Secure, c.Name)
		assert.Equal(t, 600, c.MaxAge, c.Name)
	}
}

func TestLogin_ServiceFailure(t *testing.T) {
	svc := newStubAuth()
	svc.beginErr = errors.New("discovery unavailable")
	w := httptest.NewRecorder()
	(&AuthHandlers{Svc: svc}).Login(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"login_failed"`)
}

func TestLocalPath(t *testing.T) {
	tests := map[string]string{
		"":                      "/",
		"/task/1/status":        "/task/1/status",
		"/search?q=go":          "/search?q=go",
		"https://evil.test/x":   "/",
		"//evil.test/x":         "/",
		`/\evil.test`:           "/",
		"relative/path":         "/",
		"://invalid":            "/",
		"javascript:alert('x')": "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, localPath(in), "localPath(%q)", in)
	}
}

func callbackRequest(query string, cookies map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+query, nil)
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req
}

func TestCallback_IssuesSession(t *testing.T) {
	svc := newStubAuth()
	h := &AuthHandlers{Svc: svc}

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest("code=c-1&state=st-1", map[string]string{
		oauthStateCookie: "st-1",
		oauthNonceCookie: "n-1",
		postLoginCookie:  "/task/42/results",
	}))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/task/42/results", w.Header().Get("Location"))
	assert.Equal(t, service.CompleteLoginInput{Code: "c-1", State: "st-1", Nonce: "n-1"}, svc.gotComplete)

	cookies := cookiesByName(t, w)
	assert.Equal(t, "fresh", cookies[sessionCookie].Value)
	assert.Positive(t, cookies[sessionCookie].MaxAge)
	for _, name := range []string{oauthStateCookie, oauthNonceCookie, postLoginCookie} {
		assert.Equal(t, -1, cookies[name].MaxAge, name)
	}
}

func TestCallback_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		cookies map[string]string
		errCode string
	}{
		{"missing code", "state=st-1", nil, "missing_code"},
		{"missing state", "code=c-1", nil, "missing_state"},
		{"state mismatch", "code=c-1&state=forged", map[string]string{oauthStateCookie: "st-1"}, "invalid_state"},
		{"no state cookie", "code=c-1&state=st-1", nil, "invalid_state"},
		{"no nonce cookie", "code=c-1&state=st-1", map[string]string{oauthStateCookie: "st-1"}, "missing_nonce"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newStubAuth()
			w := httptest.NewRecorder()
			(&AuthHandlers{Svc: svc}).Callback(w, callbackRequest(tt.query, tt.cookies))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"`+tt.errCode+`"`)
			assert.Empty(t, svc.gotComplete.Code)
		})
	}
}

func TestCallback_CompletionFailure(t *testing.T) {
	svc := newStubAuth()
	svc.completeErr = errors.New("email not verified")
	w := httptest.NewRecorder()
	(&AuthHandlers{Svc: svc}).Callback(w, callbackRequest("code=c-1&state=st-1", map[string]string{
		oauthStateCookie: "st-1",
		oauthNonceCookie: "n-1",
	}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, cookiesByName(t, w), sessionCookie)
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		accept   string
		status   int
		location string
	}{
		{"browser", "/auth/logout?redirect_uri=/bye", "", http.StatusFound, "/bye"},
		{"offsite redirect", "/auth/logout?redirect_uri=https://evil.test/x", "", http.StatusFound, "/"},
		{"api client", "/auth/logout", "application/json", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newStubAuth(testSession("s-1", domainauth.RoleUser))
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "s-1"})
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			(&AuthHandlers{Svc: svc}).Logout(w, req)

			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, []string{"s-1"}, svc.loggedOut)
			assert.Equal(t, -1, cookiesByName(t, w)[sessionCookie].MaxAge)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			} else {
				assert.JSONEq(t, `{"status":"success","redirect_to":"/"}`, w.Body.String())
			}
		})
	}
}

func TestMe(t *testing.T) {
	svc := newStubAuth(testSession("s-1", domainauth.RoleAdmin))
	h := &AuthHandlers{Svc: svc}

	t.Run("signed in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "s-1"})
		w := httptest.NewRecorder()
		h.Me(w, req)

		var got meResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.True(t, got.Authenticated)
		assert.Equal(t, "s-1-account", got.User.ID)
		assert.Equal(t, domainauth.RoleAdmin, got.User.Role)
		assert.NotNil(t, got.ExpiresAt)
	})

	t.Run("stale cookie is cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "gone"})
		w := httptest.NewRecorder()
		h.Me(w, req)

		assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
		assert.Equal(t, -1, cookiesByName(t, w)[sessionCookie].MaxAge)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
		assert.Empty(t, cookiesByName(t, w))
	})
}
