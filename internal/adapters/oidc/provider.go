// Package oidc signs registered users in through any standards-compliant OpenID Connect provider.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/ports"
)

// ErrEmailNotVerified is returned when RequireVerifiedEmail is set and the IdP says otherwise.
var ErrEmailNotVerified = errors.New("email address is not verified")

// Provider implements ports.AuthProvider on top of go-oidc and oauth2.
type Provider struct {
	config               *oauth2.Config
	verifier             *gooidc.IDTokenVerifier
	oidcProvider         *gooidc.Provider
	requireVerifiedEmail bool
	now                  func() time.Time
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	// Issuer URL; a trailing /.well-known/openid-configuration is accepted and stripped.
	DiscoveryURL         string
	RequireVerifiedEmail bool
	HTTPClient           *http.Client
}

// NewProvider performs discovery and builds the oauth2 config.
func NewProvider(config ProviderConfig) (*Provider, error) {
	switch {
	case config.ClientID == "":
		return nil, errors.New("client ID is required")
	case config.ClientSecret == "":
		return nil, errors.New("client secret is required")
	case config.RedirectURL == "":
		return nil, errors.New("redirect URL is required")
	case config.DiscoveryURL == "":
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuerFromDiscovery(config.DiscoveryURL))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	scope := config.Scope
	if strings.TrimSpace(scope) == "" {
		scope = "openid profile email"
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(scope),
			Endpoint:     op.Endpoint(),
		},
		verifier:             op.Verifier(&gooidc.Config{ClientID: config.ClientID}),
		oidcProvider:         op,
		requireVerifiedEmail: config.RequireVerifiedEmail,
		now:                  time.Now,
	}, nil
}

func issuerFromDiscovery(u string) string {
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, "/.well-known/openid-configuration")
	return strings.TrimSuffix(u, ".well-known/openid-configuration")
}

// Begin builds the authorization URL. The registered RedirectURL is sent as redirect_uri;
// in.RedirectURL only has to be present and is kept by the caller for after the callback.
func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (ports.LoginChallenge, error) {
	if in.RedirectURL == "" {
		return ports.LoginChallenge{}, errors.New("redirect URL is required")
	}
	state, nonce, err := ports.NewChallengeSecrets()
	if err != nil {
		return ports.LoginChallenge{}, err
	}
	return ports.LoginChallenge{
		AuthURL: p.config.AuthCodeURL(state,
			oauth2.SetAuthURLParam("nonce", nonce),
			oauth2.SetAuthURLParam("prompt", "select_account"),
		),
		State: state,
		Nonce: nonce,
	}, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	switch {
	case in.Code == "":
		return domainauth.Identity{}, errors.New("authorization code is required")
	case in.State == "":
		return domainauth.Identity{}, errors.New("state is required")
	case in.Nonce == "":
		return domainauth.Identity{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("exchange code for token: %w", err)
	}

	claims, err := p.verifiedClaims(ctx, token, in.Nonce)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("extract id_token: %w", err)
	}
	if claims.Email == "" || claims.GivenName == "" {
		if uiErr := p.fillFromUserInfo(ctx, token, &claims); uiErr != nil {
			return domainauth.Identity{}, fmt.Errorf("get user info: %w", uiErr)
		}
	}
	if claims.Sub == "" {
		return domainauth.Identity{}, errors.New("identity has no subject")
	}
	if p.requireVerifiedEmail && claims.EmailVerified != nil && !*claims.EmailVerified {
		return domainauth.Identity{}, ErrEmailNotVerified
	}

	expiresAt := p.now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}
	return claims.identity(expiresAt), nil
}

// standardClaims is the OIDC core claim set shared by ID tokens and UserInfo.
type standardClaims struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified *bool    `json:"email_verified,omitempty"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	Name          string   `json:"name"`
	Groups        []string `json:"groups"`
	Nonce         string   `json:"nonce"`
}

func (c standardClaims) identity(expiresAt time.Time) domainauth.Identity {
	first, last := c.GivenName, c.FamilyName
	if first == "" && last == "" && c.Name != "" {
		first, last, _ = strings.Cut(c.Name, " ")
	}
	return domainauth.Identity{
		Subject:   c.Sub,
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(c.Email),
		Groups:    c.Groups,
		ExpiresAt: expiresAt,
	}
}

// merge fills empty fields of c from other without overwriting.
func (c *standardClaims) merge(other standardClaims) {
	if c.Sub == "" {
		c.Sub = other.Sub
	}
	if c.Email == "" {
		c.Email = other.Email
		c.EmailVerified = other.EmailVerified
	}
	if c.GivenName == "" {
		c.GivenName = other.GivenName
	}
	if c.FamilyName == "" {
		c.FamilyName = other.FamilyName
	}
	if c.Name == "" {
		c.Name = other.Name
	}
	if len(c.Groups) == 0 {
		c.Groups = other.Groups
	}
}

func (p *Provider) verifiedClaims(ctx context.Context, tok *oauth2.Token, nonce string) (standardClaims, error) {
	var c standardClaims
	if !p.hasOpenIDScope() {
		return c, nil
	}
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return c, err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return c, fmt.Errorf("verify id_token: %w", err)
	}
	if err := idTok.Claims(&c); err != nil {
		return c, fmt.Errorf("parse id_token claims: %w", err)
	}
	if c.Nonce != nonce {
		return c, errors.New("invalid nonce")
	}
	return c, nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, c *standardClaims) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var extra standardClaims
	if err := ui.Claims(&extra); err != nil {
		return fmt.Errorf("decode user info: %w", err)
	}
	c.merge(extra)
	return nil
}

func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
