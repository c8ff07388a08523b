package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/target/jobmatch/internal/core"
	domainauth "github.com/target/jobmatch/internal/domain/auth"
	"github.com/target/jobmatch/internal/domain/model"
)

// OwnerResolver decides who owns a submission.
type OwnerResolver struct {
	users   core.UserRepository
	newMark func() string
}

// NewOwnerResolver constructs an OwnerResolver.
func NewOwnerResolver(users core.UserRepository) (*OwnerResolver, error) {
	if users == nil {
		return nil, errors.New("UserRepository is required")
	}
	return &OwnerResolver{users: users, newMark: uuid.NewString}, nil
}

// Resolve returns the registered owner for an authenticated session. Otherwise it returns the
// guest bound to marker, minting a new marker when none was presented. The returned marker is
// empty for registered owners.
func (r *OwnerResolver) Resolve(
	ctx context.Context,
	session *domainauth.Session,
	marker string,
) (model.Owner, string, error) {
	if session != nil && !session.IsGuest() && session.AccountID != "" {
		return session.Owner(), "", nil
	}

	marker = strings.TrimSpace(marker)
	if marker == "" {
		marker = r.newMark()
	}
	guest, err := r.users.GetOrCreateGuest(ctx, marker)
	if err != nil {
		return model.Owner{}, "", fmt.Errorf("resolve guest owner: %w", err)
	}
	return model.GuestOwner(guest.ID), marker, nil
}
