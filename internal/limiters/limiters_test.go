package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goFaceAuth/internal/stores"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestTrackerLocksAtThreshold(t *testing.T) {
	_, rdb := newTestRedis(t)
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(stores.NewAttemptStore(rdb, ""), TrackerConfig{MaxFailedAttempts: 5, Window: time.Hour}, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tr.RecordAttempt(ctx, "alice", false); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
		now = now.Add(time.Minute)
	}
	locked, n, err := tr.IsLocked(ctx, "alice")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if locked || n != 4 {
		t.Fatalf("expected unlocked with 4 failures, got locked=%v n=%d", locked, n)
	}

	_, _ = tr.RecordAttempt(ctx, "alice", false)
	if locked, _, _ := tr.IsLocked(ctx, "alice"); !locked {
		t.Fatal("expected lock after 5 failures")
	}

	// Successes do not unlock.
	_, _ = tr.RecordAttempt(ctx, "alice", true)
	if locked, _, _ := tr.IsLocked(ctx, "alice"); !locked {
		t.Fatal("a success must not clear the failure window")
	}
}

func TestTrackerWindowSlides(t *testing.T) {
	_, rdb := newTestRedis(t)
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(stores.NewAttemptStore(rdb, ""), TrackerConfig{MaxFailedAttempts: 3, Window: time.Hour}, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = tr.RecordAttempt(ctx, "bob", false)
	}
	if locked, _, _ := tr.IsLocked(ctx, "bob"); !locked {
		t.Fatal("expected lock")
	}

	now = now.Add(time.Hour)
	if locked, n, _ := tr.IsLocked(ctx, "bob"); locked || n != 0 {
		t.Fatalf("failures exactly one window old must fall out, got locked=%v n=%d", locked, n)
	}
}

func TestTrackerResetUnlocksButKeepsCounters(t *testing.T) {
	_, rdb := newTestRedis(t)
	tr := NewTracker(stores.NewAttemptStore(rdb, ""), TrackerConfig{MaxFailedAttempts: 2, Window: time.Hour}, nil)
	ctx := context.Background()

	_, _ = tr.RecordAttempt(ctx, "carol", false)
	_, _ = tr.RecordAttempt(ctx, "carol", false)
	if locked, _, _ := tr.IsLocked(ctx, "carol"); !locked {
		t.Fatal("expected lock")
	}

	if err := tr.Reset(ctx, "carol", false); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if locked, _, _ := tr.IsLocked(ctx, "carol"); locked {
		t.Fatal("expected unlock after reset")
	}
	c, err := tr.Counters(ctx, "carol")
	if err != nil || c.Failed != 2 {
		t.Fatalf("Counters = %+v, %v", c, err)
	}
}

func TestTrackerUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	tr := NewTracker(stores.NewAttemptStore(rdb, ""), TrackerConfig{MaxFailedAttempts: 2, Window: time.Hour}, nil)
	mr.Close()

	if _, _, err := tr.IsLocked(context.Background(), "dave"); !errors.Is(err, ErrTrackerUnavailable) {
		t.Fatalf("expected ErrTrackerUnavailable, got %v", err)
	}
}

func TestRequestLimiter(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRequestLimiter(rdb, "fa:r", RequestLimiterConfig{MaxRequests: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("Allow %d failed: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "10.0.0.1"); !errors.Is(err, ErrRequestRateLimited) {
		t.Fatalf("expected ErrRequestRateLimited, got %v", err)
	}
	if err := l.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other keys must be unaffected: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected budget to renew after the window: %v", err)
	}

	disabled := NewRequestLimiter(rdb, "x", RequestLimiterConfig{})
	if disabled != nil {
		t.Fatal("expected nil limiter for an empty budget")
	}
	if err := disabled.Allow(ctx, "anything"); err != nil {
		t.Fatalf("nil limiter must allow: %v", err)
	}
}
