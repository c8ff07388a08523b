package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/target/jobmatch/internal/core"
	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/domain/model"
	"github.com/target/jobmatch/internal/ports"
)

// DefaultSessionTTL is the longest a session lives when no SessionTTL is configured.
const DefaultSessionTTL = 8 * time.Hour

// ErrSessionExpired is returned by GetSession for sessions past their expiry.
var ErrSessionExpired = errors.New("session expired")

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider
	Sessions ports.SessionStore
	Roles    ports.RoleMapper
	Users    core.UserRepository
	// SessionTTL caps session lifetime; the identity's own expiry applies when sooner.
	SessionTTL time.Duration
	Now        func() time.Time
}

// AuthService binds provider identities to registered users and keeps their sessions.
type AuthService struct {
	provider   ports.AuthProvider
	sessions   ports.SessionStore
	roles      ports.RoleMapper
	users      core.UserRepository
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthService(opts AuthServiceOptions) *AuthService {
	s := &AuthService{
		provider:   opts.Provider,
		sessions:   opts.Sessions,
		roles:      opts.Roles,
		users:      opts.Users,
		sessionTTL: opts.SessionTTL,
		now:        opts.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// BeginLoginResult is what the login handler needs to redirect and to pin the
// state and nonce in cookies.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	challenge, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{AuthURL: challenge.AuthURL, State: challenge.State, Nonce: challenge.Nonce}, nil
}

// CompleteLoginInput carries the callback parameters plus the nonce read back from its cookie.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

func (in CompleteLoginInput) validate() error {
	switch {
	case in.Code == "":
		return errors.New("authorization code is required")
	case in.State == "":
		return errors.New("state parameter is required")
	case in.Nonce == "":
		return errors.New("nonce parameter is required")
	}
	return nil
}

type CompleteLoginResult struct {
	Session domainauth.Session
	User    *model.User
}

// CompleteLogin exchanges the code, upserts the registered user for the identity's subject
// and stores a session bound to that user.
func (s *AuthService) CompleteLogin(ctx context.Context, in CompleteLoginInput) (*CompleteLoginResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{Code: in.Code, State: in.State, Nonce: in.Nonce})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if identity.Subject == "" {
		return nil, errors.New("identity has no subject")
	}

	user, role, err := s.bindUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	session := domainauth.Session{
		ID:          uuid.NewString(),
		AccountID:   user.ID,
		Subject:     identity.Subject,
		Email:       identity.Email,
		DisplayName: identity.DisplayName(),
		Role:        role,
		ExpiresAt:   s.sessionExpiry(identity),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &CompleteLoginResult{Session: session, User: user}, nil
}

// bindUser upserts the users row. Admin is sticky: a stored admin stays admin even when the
// mapper no longer says so. Everyone else signs in with the user role.
func (s *AuthService) bindUser(ctx context.Context, identity domainauth.Identity) (*model.User, domainauth.Role, error) {
	mapped := s.roles.Map(identity)
	req := model.UpsertUserRequest{
		Subject:     identity.Subject,
		Email:       identity.Email,
		DisplayName: identity.DisplayName(),
		Role:        model.UserRoleFree,
	}
	if mapped == domainauth.RoleAdmin {
		req.Role = model.UserRoleAdmin
	}

	user, err := s.users.UpsertRegistered(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("upsert user: %w", err)
	}
	if mapped == domainauth.RoleAdmin || user.Role == model.UserRoleAdmin {
		return user, domainauth.RoleAdmin, nil
	}
	return user, domainauth.RoleUser, nil
}

func (s *AuthService) sessionExpiry(identity domainauth.Identity) time.Time {
	limit := s.now().Add(s.sessionTTL)
	if identity.ExpiresAt.IsZero() || identity.ExpiresAt.After(limit) {
		return limit
	}
	return identity.ExpiresAt
}

// GetSession returns a live session. An expired one is deleted and ErrSessionExpired returned.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !s.now().After(session.ExpiresAt) {
		return &session, nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", err))
	}
	return nil, ErrSessionExpired
}

// Logout is a no-op for an empty ID.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
