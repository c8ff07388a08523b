package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/data/cryptoutil"
	"github.com/target/jobmatch/internal/domain/model"
)

// CredentialResolverOptions groups dependencies for CredentialResolver.
type CredentialResolverOptions struct {
	Users     core.UserRepository  // Required
	Encryptor cryptoutil.Encryptor // Required
	// ProcessKey is the deployment-wide scoring credential. When set it is used for every owner.
	ProcessKey string
	Logger     *slog.Logger
}

// CredentialResolver looks up the scoring credential for a job owner.
type CredentialResolver struct {
	users      core.UserRepository
	encryptor  cryptoutil.Encryptor
	processKey string
	logger     *slog.Logger
}

// NewCredentialResolver constructs a CredentialResolver.
func NewCredentialResolver(opts CredentialResolverOptions) (*CredentialResolver, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Encryptor == nil {
		return nil, errors.New("encryptor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialResolver{
		users:      opts.Users,
		encryptor:  opts.Encryptor,
		processKey: strings.TrimSpace(opts.ProcessKey),
		logger:     logger.With("component", "credential_resolver"),
	}, nil
}

// Resolve returns the credential for owner, or "" when none is configured.
// Guests only ever get the process key.
func (r *CredentialResolver) Resolve(ctx context.Context, owner model.Owner) (string, error) {
	if r.processKey != "" {
		return r.processKey, nil
	}
	if owner.IsGuest() {
		return "", nil
	}

	user, err := r.users.GetByID(ctx, owner.ID)
	if err != nil {
		return "", fmt.Errorf("load owner %s: %w", owner.ID, err)
	}
	if user.EncryptedScoringKey == nil || *user.EncryptedScoringKey == "" {
		return "", nil
	}

	plain, err := r.encryptor.Decrypt(*user.EncryptedScoringKey, user.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "stored scoring key could not be decrypted", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("decrypt scoring key: %w", err)
	}
	return string(plain), nil
}

// KeyService stores per-account scoring credentials.
type KeyService struct {
	users     core.UserRepository
	encryptor cryptoutil.Encryptor
}

// NewKeyService constructs a KeyService.
func NewKeyService(users core.UserRepository, encryptor cryptoutil.Encryptor) (*KeyService, error) {
	if users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if encryptor == nil {
		return nil, errors.New("encryptor is required")
	}
	return &KeyService{users: users, encryptor: encryptor}, nil
}

// SaveScoringKey encrypts apiKey for owner and stores it. Guests cannot hold a key.
func (s *KeyService) SaveScoringKey(ctx context.Context, owner model.Owner, apiKey string) error {
	if owner.IsGuest() {
		return ErrRegisteredOnly
	}
	if err := owner.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("%w: api_key is required", ErrInvalidInput)
	}

	ciphertext, err := s.encryptor.Encrypt([]byte(apiKey), owner.ID)
	if err != nil {
		return fmt.Errorf("encrypt scoring key: %w", err)
	}
	if err := s.users.SetScoringKey(ctx, owner.ID, ciphertext); err != nil {
		return fmt.Errorf("store scoring key: %w", err)
	}
	return nil
}
