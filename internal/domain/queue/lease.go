// Package queue holds the delivery rules shared by task producers and stage workers.
package queue

import (
	"errors"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// MaxLease bounds any single reservation. A worker that needs longer must heartbeat.
const MaxLease = time.Hour

// LeaseSource records how a lease length was chosen.
type LeaseSource string

const (
	LeaseSourceExplicit LeaseSource = "explicit"
	LeaseSourceDefault  LeaseSource = "default"
	LeaseSourceClamped  LeaseSource = "clamped"
)

// LeaseDecision is the resolved reservation length in whole seconds.
type LeaseDecision struct {
	Seconds   int
	Source    LeaseSource
	Requested time.Duration
}

// Clamped reports whether the request was pulled into [1s, MaxLease].
func (d LeaseDecision) Clamped() bool { return d.Source == LeaseSourceClamped }

// UsedDefault reports whether no explicit lease was requested.
func (d LeaseDecision) UsedDefault() bool { return d.Source == LeaseSourceDefault }

// LeasePolicy turns requested lease durations into the seconds stored on a task.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy builds a policy that falls back to defaultLease.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the fallback lease.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// Resolve picks the lease for a reservation or heartbeat request.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	d := LeaseDecision{Requested: request, Source: LeaseSourceExplicit}
	want := request
	if request == 0 {
		want = p.Default()
		d.Source = LeaseSourceDefault
	}

	switch {
	case want < time.Second:
		d.Seconds = 1
		d.Source = LeaseSourceClamped
	case want > MaxLease:
		d.Seconds = int(MaxLease / time.Second)
		d.Source = LeaseSourceClamped
	default:
		d.Seconds = int(want / time.Second)
	}
	return d
}
