package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobmatch/config"
	"github.com/target/jobmatch/internal/adapters/authroles"
	"github.com/target/jobmatch/internal/adapters/devauth"
	"github.com/target/jobmatch/internal/adapters/oidc"
	redisadapter "github.com/target/jobmatch/internal/adapters/redis"
	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/ports"
	"github.com/target/jobmatch/internal/service"
)

// AuthConfig contains configuration for auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Users       core.UserRepository
	Logger      *slog.Logger
}

var errAuthDisabled = errors.New("auth disabled")

// BuildAuthService returns nil when login is unavailable: AUTH_MODE=none, no Redis for
// sessions, or an unusable provider configuration. The API then serves guests only.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := buildAuthService(cfg)
	switch {
	case errors.Is(err, errAuthDisabled):
		logger.Info("login disabled; serving guests only", "mode", cfg.Auth.Mode)
		return nil
	case err != nil:
		logger.Warn("login disabled", "mode", cfg.Auth.Mode, "error", err)
		return nil
	}
	if cfg.Auth.Mode == config.AuthModeMock {
		logger.Warn("dev auth enabled; every login signs in as the configured identity", "email", cfg.Auth.DevAuth.Email)
	}
	return svc
}

func buildAuthService(cfg AuthConfig) (*service.AuthService, error) {
	if cfg.Auth.Mode == config.AuthModeNone {
		return nil, errAuthDisabled
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("sessions need redis but no client is configured")
	}

	provider, err := authProvider(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(service.AuthServiceOptions{
		Provider:   provider,
		Sessions:   redisadapter.NewSessionStore(cfg.RedisClient, redisadapter.SessionStoreOptions{}),
		Roles:      authroles.Mapper{AdminEmails: cfg.Auth.AdminEmails, AdminGroup: cfg.Auth.AdminGroup},
		Users:      cfg.Users,
		SessionTTL: cfg.Auth.SessionTTL,
	}), nil
}

//nolint:ireturn // the provider implementation depends on AUTH_MODE.
func authProvider(auth config.AuthConfig) (ports.AuthProvider, error) {
	switch auth.Mode {
	case config.AuthModeMock:
		dev := auth.DevAuth
		p, err := devauth.NewProvider(devauth.Config{
			Subject:   dev.UserID,
			Email:     dev.Email,
			FirstName: dev.FirstName,
			LastName:  dev.LastName,
			Groups:    dev.Groups,
		})
		if err != nil {
			return nil, fmt.Errorf("dev auth provider: %w", err)
		}
		return p, nil
	case config.AuthModeOAuth:
		o := auth.OAuth
		p, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:             o.ClientID,
			ClientSecret:         o.ClientSecret,
			RedirectURL:          o.RedirectURL,
			Scope:                o.Scope,
			DiscoveryURL:         o.DiscoveryURL,
			RequireVerifiedEmail: o.RequireVerifiedEmail,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", auth.Mode)
	}
}
