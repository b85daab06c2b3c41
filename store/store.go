// Package store defines the persistence contract the engine needs from a
// biometric profile backend.
//
// Implementations live in internal/stores (Redis) and store/postgres. Both
// must guarantee that a profile is replaced in one step and that attempt
// counters are updated atomically per identity.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no profile exists for an identity.
	ErrNotFound = errors.New("biometric profile not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("biometric store unavailable")
)

// Profile is the persisted biometric enrollment of one identity.
type Profile struct {
	Identity         string
	Embedding        []float64
	Enabled          bool
	RegisteredAt     time.Time
	LivenessRequired bool
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := p
	out.Embedding = append([]float64(nil), p.Embedding...)
	return out
}

// Counters are the per-identity attempt totals.
type Counters struct {
	Success     uint64
	Failed      uint64
	LastAttempt time.Time
}

// ProfileStore persists biometric profiles.
type ProfileStore interface {
	// GetProfile returns ErrNotFound when the identity never enrolled.
	GetProfile(ctx context.Context, identity string) (*Profile, error)
	// SaveProfile installs p, replacing any prior profile in one step.
	SaveProfile(ctx context.Context, p Profile) error
	// SetEnabled flips the enabled flag without touching the embedding.
	SetEnabled(ctx context.Context, identity string, enabled bool) error
}

// AttemptStore persists attempt counters and the failure timeline used for
// lockout decisions.
type AttemptStore interface {
	// RecordAttempt increments exactly one counter and stamps the last
	// attempt time. Failures are also appended to the timeline, which
	// keeps at least retain worth of history.
	RecordAttempt(ctx context.Context, identity string, success bool, at time.Time, retain time.Duration) (Counters, error)
	Counters(ctx context.Context, identity string) (Counters, error)
	// FailuresSince counts failures strictly after since.
	FailuresSince(ctx context.Context, identity string, since time.Time) (int, error)
	// ResetFailures clears the failure timeline and, when counters is true,
	// the totals as well.
	ResetFailures(ctx context.Context, identity string, counters bool) error
}
