package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrUserNotFound = errors.New("user not found")

	// ErrGuestKey is returned when a scoring key is saved against a guest identity.
	ErrGuestKey = errors.New("guest identities cannot store a scoring key")
)
