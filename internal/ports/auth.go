// Package ports declares the interfaces the auth service depends on. Adapters in
// internal/adapters implement them.
package ports

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
)

// BeginInput is the login request as seen by a provider.
type BeginInput struct {
	// RedirectURL is the local path the user returns to after the callback.
	RedirectURL string
}

// LoginChallenge tells the browser where to authenticate. The callback must echo State,
// and the ID token must carry Nonce.
type LoginChallenge struct {
	AuthURL string
	State   string
	Nonce   string
}

// ExchangeInput is the callback's authorization code plus the echoed challenge values.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider runs the two legs of a redirect-based login.
type AuthProvider interface {
	Begin(ctx context.Context, in BeginInput) (LoginChallenge, error)
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Identity, error)
}

// SessionStore keeps sessions by ID. Get fails for unknown IDs.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// RoleMapper decides the application role for a signed-in identity.
type RoleMapper interface {
	Map(id domainauth.Identity) domainauth.Role
}

const challengeSecretLen = 32

// NewChallengeSecrets draws a URL-safe random state and nonce.
func NewChallengeSecrets() (state, nonce string, err error) {
	if state, err = randomToken(challengeSecretLen); err != nil {
		return "", "", fmt.Errorf("generate state: %w", err)
	}
	if nonce, err = randomToken(challengeSecretLen); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return state, nonce, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, base64.RawURLEncoding.DecodedLen(n)+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
