package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFaceAuth/store"
)

// TrackerConfig holds the sliding-window lockout policy.
type TrackerConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
}

var (
	// ErrTrackerUnavailable indicates the attempt backend is unreachable.
	ErrTrackerUnavailable = errors.New("attempt tracker backend unavailable")
)

// Tracker records authentication attempts and derives lock state from the
// failures inside the trailing window. Lock state is never stored.
type Tracker struct {
	attempts store.AttemptStore
	config   TrackerConfig
	now      func() time.Time
}

// NewTracker creates a tracker over attempts. A nil clock uses time.Now.
func NewTracker(attempts store.AttemptStore, cfg TrackerConfig, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{attempts: attempts, config: cfg, now: now}
}

// RecordAttempt increments the success or failed counter for identity and
// returns the counters after the update.
func (t *Tracker) RecordAttempt(ctx context.Context, identity string, success bool) (store.Counters, error) {
	c, err := t.attempts.RecordAttempt(ctx, identity, success, t.now(), t.config.Window)
	if err != nil {
		return store.Counters{}, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return c, nil
}

// IsLocked reports whether identity reached MaxFailedAttempts failures in
// (now-Window, now]. It also returns the failure count it observed.
func (t *Tracker) IsLocked(ctx context.Context, identity string) (bool, int, error) {
	if t.config.MaxFailedAttempts <= 0 || t.config.Window <= 0 {
		return false, 0, nil
	}

	n, err := t.attempts.FailuresSince(ctx, identity, t.now().Add(-t.config.Window))
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return n >= t.config.MaxFailedAttempts, n, nil
}

func (t *Tracker) Counters(ctx context.Context, identity string) (store.Counters, error) {
	c, err := t.attempts.Counters(ctx, identity)
	if err != nil {
		return store.Counters{}, fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return c, nil
}

// Reset clears the failure timeline (administrative unlock). Counters are
// cleared only when counters is true.
func (t *Tracker) Reset(ctx context.Context, identity string, counters bool) error {
	if err := t.attempts.ResetFailures(ctx, identity, counters); err != nil {
		return fmt.Errorf("%w: %v", ErrTrackerUnavailable, err)
	}
	return nil
}
