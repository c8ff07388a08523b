package data

import "log/slog"

// RepoConfig holds options shared by the repositories in this package.
type RepoConfig struct {
	// RetryDelaySeconds is how long a failed task waits before redelivery.
	RetryDelaySeconds int
	Logger            *slog.Logger
	TimeProvider      TimeProvider
}

func (c RepoConfig) timeProvider() TimeProvider {
	if c.TimeProvider == nil {
		return &RealTimeProvider{}
	}
	return c.TimeProvider
}
