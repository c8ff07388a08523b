package model

import (
	"errors"
	"fmt"
	"strings"
)

// OwnerKind distinguishes registered accounts from per-session guests.
type OwnerKind string

const (
	OwnerRegistered OwnerKind = "registered"
	OwnerGuest      OwnerKind = "guest"
)

// Owner identifies who submitted a job. It is fixed at creation.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// RegisteredOwner returns the owner for an authenticated user.
func RegisteredOwner(userID string) Owner {
	return Owner{Kind: OwnerRegistered, ID: userID}
}

// GuestOwner returns the owner for a guest identity.
func GuestOwner(userID string) Owner {
	return Owner{Kind: OwnerGuest, ID: userID}
}

// IsGuest reports whether the owner is an ephemeral guest.
func (o Owner) IsGuest() bool { return o.Kind == OwnerGuest }

// Validate ensures the owner carries a known kind and an id.
func (o Owner) Validate() error {
	if o.Kind != OwnerRegistered && o.Kind != OwnerGuest {
		return fmt.Errorf("invalid owner kind %q", o.Kind)
	}
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("owner id is required")
	}
	return nil
}

// Same reports whether two owners refer to the same identity.
func (o Owner) Same(other Owner) bool {
	return o.Kind == other.Kind && o.ID == other.ID
}

func (o Owner) String() string {
	return string(o.Kind) + ":" + o.ID
}
