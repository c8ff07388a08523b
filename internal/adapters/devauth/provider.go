// Package devauth provides a config-driven AuthProvider for local development (AUTH_MODE=mock).
package devauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/ports"
)

// Config controls the dev auth provider. Subject and Email are required.
type Config struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	Groups          []string
	SessionDuration time.Duration // default 8h when zero
	Now             func() time.Time
}

// Provider short-circuits the OAuth flow by redirecting straight back to our own
// callback. Exchange ignores the code and returns the configured identity.
type Provider struct {
	identity        domainauth.Identity
	sessionDuration time.Duration
	now             func() time.Time
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Subject == "" {
		return nil, errors.New("dev auth: Subject is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		identity: domainauth.Identity{
			Subject:   cfg.Subject,
			Email:     cfg.Email,
			FirstName: cfg.FirstName,
			LastName:  cfg.LastName,
			Groups:    append([]string(nil), cfg.Groups...),
		},
		sessionDuration: dur,
		now:             now,
	}, nil
}

// Begin skips the IdP and points straight at our own callback.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (ports.LoginChallenge, error) {
	state, nonce, err := ports.NewChallengeSecrets()
	if err != nil {
		return ports.LoginChallenge{}, err
	}
	return ports.LoginChallenge{
		AuthURL: "/auth/callback?code=dev&state=" + url.QueryEscape(state),
		State:   state,
		Nonce:   nonce,
	}, nil
}

// Exchange returns the dev identity with an expiry measured from now.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Identity, error) {
	id := p.identity
	id.Groups = append([]string(nil), p.identity.Groups...)
	id.ExpiresAt = p.now().Add(p.sessionDuration)
	return id, nil
}
