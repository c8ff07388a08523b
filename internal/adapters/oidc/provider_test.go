package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/target/jobmatch/internal/ports"
)

const testClientID = "jobmatch-web"

// fakeIdP is a minimal OpenID provider: discovery, JWKS, token and userinfo endpoints,
// with ID tokens signed by an in-memory RSA key.
type fakeIdP struct {
	srv *httptest.Server
	key *rsa.PrivateKey

	mu        sync.Mutex
	idClaims  map[string]any
	userinfo  map[string]any
	tokenHits int
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIdP{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/authorize",
			"token_endpoint":                        f.srv.URL + "/token",
			"userinfo_endpoint":                     f.srv.URL + "/userinfo",
			"jwks_uri":                              f.srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /jwks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"alg": "RS256",
			"use": "sig",
			"n":   b64(key.N.Bytes()),
			"e":   b64(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.tokenHits++
		claims := f.idClaims
		f.mu.Unlock()
		writeJSON(w, map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     f.sign(t, claims),
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.userinfo)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdP) setClaims(id, userinfo map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := map[string]any{
		"iss": f.srv.URL,
		"aud": testClientID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range id {
		base[k] = v
	}
	f.idClaims = base
	f.userinfo = userinfo
}

func (f *fakeIdP) sign(t *testing.T, claims map[string]any) string {
	header, err := json.Marshal(map[string]string{"alg": "RS256", "kid": "k1", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	signingInput := b64(header) + "." + b64(payload)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return signingInput + "." + b64(sig)
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestProvider(t *testing.T, idp *fakeIdP, requireVerified bool) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{
		ClientID:             testClientID,
		ClientSecret:         "s3cret",
		RedirectURL:          "https://jobmatch.test/auth/callback",
		DiscoveryURL:         idp.srv.URL + "/.well-known/openid-configuration",
		RequireVerifiedEmail: requireVerified,
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_RequiredFields(t *testing.T) {
	full := ProviderConfig{ClientID: "c", ClientSecret: "s", RedirectURL: "https://x/cb", DiscoveryURL: "https://idp"}
	tests := map[string]func(*ProviderConfig){
		"client ID is required":     func(c *ProviderConfig) { c.ClientID = "" },
		"client secret is required": func(c *ProviderConfig) { c.ClientSecret = "" },
		"redirect URL is required":  func(c *ProviderConfig) { c.RedirectURL = "" },
		"discovery URL is required": func(c *ProviderConfig) { c.DiscoveryURL = "" },
	}
	for want, mutate := range tests {
		cfg := full
		mutate(&cfg)
		_, err := NewProvider(cfg)
		assert.ErrorContains(t, err, want)
	}
}

func TestNewProvider_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewProvider(ProviderConfig{ClientID: "c", ClientSecret: "s", RedirectURL: "https://x/cb", DiscoveryURL: srv.URL})
	assert.ErrorContains(t, err, "oidc new provider")
}

func TestProvider_Begin(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, false)

	ch, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "/task/1/results"})
	require.NoError(t, err)

	u, err := url.Parse(ch.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, idp.srv.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "https://jobmatch.test/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, ch.State, q.Get("state"))
	assert.Equal(t, ch.Nonce, q.Get("nonce"))
	assert.Equal(t, "select_account", q.Get("prompt"))

	_, err = p.Begin(context.Background(), ports.BeginInput{})
	assert.ErrorContains(t, err, "redirect URL is required")
}

func TestProvider_Exchange_IDTokenClaims(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, true)
	idp.setClaims(map[string]any{
		"sub":            "google-42",
		"nonce":          "n-1",
		"email":          "Asha.Rao@Example.com",
		"email_verified": true,
		"given_name":     "Asha",
		"family_name":    "Rao",
		"groups":         []string{"recruiting-admins"},
	}, nil)

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c-1", State: "st", Nonce: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "google-42", id.Subject)
	assert.Equal(t, "asha.rao@example.com", id.Email)
	assert.Equal(t, "Asha Rao", id.DisplayName())
	assert.Equal(t, []string{"recruiting-admins"}, id.Groups)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, time.Minute)
}

func TestProvider_Exchange_FillsFromUserInfo(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, false)
	idp.setClaims(
		map[string]any{"sub": "gh-7", "nonce": "n-1"},
		map[string]any{"sub": "gh-7", "email": "dev@jobmatch.test", "name": "Ravi Kumar"},
	)

	id, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c-1", State: "st", Nonce: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "dev@jobmatch.test", id.Email)
	assert.Equal(t, "Ravi", id.FirstName)
	assert.Equal(t, "Kumar", id.LastName)
}

func TestProvider_Exchange_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		nonce    string
		verified bool
		want     string
	}{
		{"nonce mismatch", map[string]any{"sub": "s", "nonce": "other", "email": "a@b.c", "given_name": "A"}, "n-1", false, "invalid nonce"},
		{"wrong audience", map[string]any{"sub": "s", "nonce": "n-1", "aud": "someone-else"}, "n-1", false, "verify id_token"},
		{"unverified email", map[string]any{"sub": "s", "nonce": "n-1", "email": "a@b.c", "given_name": "A", "email_verified": false}, "n-1", true, ErrEmailNotVerified.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := newFakeIdP(t)
			p := newTestProvider(t, idp, tt.verified)
			idp.setClaims(tt.claims, nil)

			_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "st", Nonce: tt.nonce})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestProvider_Exchange_ValidatesInputBeforeCallingIdP(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, false)

	for _, in := range []ports.ExchangeInput{
		{State: "s", Nonce: "n"},
		{Code: "c", Nonce: "n"},
		{Code: "c", State: "s"},
	} {
		_, err := p.Exchange(context.Background(), in)
		assert.Error(t, err)
	}
	assert.Zero(t, idp.tokenHits)
}

func TestGetIDTokenFromToken(t *testing.T) {
	raw, err := getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"id_token": "a.b.c"}))
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", raw)

	_, err = getIDTokenFromToken(&oauth2.Token{})
	assert.ErrorContains(t, err, "missing id_token")
	_, err = getIDTokenFromToken(nil)
	assert.ErrorContains(t, err, "nil token")
}

func TestStandardClaims_Merge(t *testing.T) {
	verified := true
	ui := standardClaims{Sub: "ui", Email: "ui@x.io", EmailVerified: &verified, GivenName: "U", FamilyName: "I", Groups: []string{"g"}}

	var empty standardClaims
	empty.merge(ui)
	assert.Equal(t, ui, empty)

	kept := standardClaims{Sub: "keep", Email: "keep@x.io", GivenName: "K", Groups: []string{"x"}}
	kept.merge(ui)
	assert.Equal(t, standardClaims{Sub: "keep", Email: "keep@x.io", GivenName: "K", FamilyName: "I", Groups: []string{"x"}}, kept)
}

func TestIssuerFromDiscovery(t *testing.T) {
	for _, in := range []string{
		"https://idp.test/.well-known/openid-configuration",
		"https://idp.test/",
		"https://idp.test",
	} {
		assert.Equal(t, "https://idp.test", issuerFromDiscovery(in), in)
	}
}
