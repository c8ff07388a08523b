package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode selects how registered users sign in.
type AuthMode string

const (
	// AuthModeOAuth signs users in through an OIDC provider.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock signs every login in as DevAuth's identity. Development only.
	AuthModeMock AuthMode = "mock"
	// AuthModeNone disables login; only guest uploads are served.
	AuthModeNone AuthMode = "none"
)

func (a *AuthMode) UnmarshalText(text []byte) error {
	switch v := AuthMode(strings.ToLower(strings.TrimSpace(string(text)))); v {
	case AuthModeOAuth, AuthModeMock, AuthModeNone:
		*a = v
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock, none)", string(text))
	}
}

// OAuthConfig holds the OIDC client registration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	// DiscoveryURL may be the issuer or its /.well-known/openid-configuration document.
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
	// RequireVerifiedEmail rejects identities whose email_verified claim is false.
	RequireVerifiedEmail bool `env:"REQUIRE_VERIFIED_EMAIL" envDefault:"true"`
}

// missing lists the settings an OIDC login cannot work without.
func (o OAuthConfig) missing() []string {
	var out []string
	for _, f := range []struct{ name, value string }{
		{"OAUTH_DISCOVERY_URL", o.DiscoveryURL},
		{"OAUTH_CLIENT_ID", o.ClientID},
		{"OAUTH_CLIENT_SECRET", o.ClientSecret},
		{"OAUTH_REDIRECT_URL", o.RedirectURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// DevAuthConfig is the identity AUTH_MODE=mock signs in as.
type DevAuthConfig struct {
	UserID    string   `env:"USER_ID"    envDefault:"dev-user"`
	Email     string   `env:"EMAIL"      envDefault:"dev@example.com"`
	FirstName string   `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string   `env:"LAST_NAME"  envDefault:"User"`
	Groups    []string `env:"GROUPS"     envDefault:"admins"          envSeparator:";"`
}

type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminEmails lists identities that receive the admin role.
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`
	// AdminGroup grants admin to members of this group claim. Empty disables group mapping.
	AdminGroup string `env:"ADMIN_GROUP"`

	// SessionTTL caps how long a login session lasts.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"8h"`
}

// Validate reports settings that would leave the selected mode unusable.
func (c AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeOAuth:
		if missing := c.OAuth.missing(); len(missing) > 0 {
			return fmt.Errorf("auth mode oauth requires %s", strings.Join(missing, ", "))
		}
	case AuthModeMock:
		if strings.TrimSpace(c.DevAuth.UserID) == "" || strings.TrimSpace(c.DevAuth.Email) == "" {
			return errors.New("auth mode mock requires DEV_AUTH_USER_ID and DEV_AUTH_EMAIL")
		}
	case AuthModeNone:
	default:
		return fmt.Errorf("unknown auth mode %q", c.Mode)
	}
	if c.SessionTTL < 0 {
		return errors.New("AUTH_SESSION_TTL must not be negative")
	}
	return nil
}
