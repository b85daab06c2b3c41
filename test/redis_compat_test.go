//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goFaceAuth/internal/stores"
	"github.com/MrEthical07/goFaceAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				// Flush the test DB to avoid state leaking between runs.
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	// Cluster mode: when REDIS_CLUSTER_ADDRS is set (comma-separated).
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// uniqueIdentity keeps runs against a shared cluster from colliding.
func uniqueIdentity(base string) string {
	return base + "-" + time.Now().Format("150405.000000000")
}

// TestRedisCompat_AttemptTransaction validates the counters/timeline
// MULTI/EXEC across backends, including cluster slot placement.
func TestRedisCompat_AttemptTransaction(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			attempts := stores.NewAttemptStore(rdb, "fa")
			ctx := context.Background()
			id := uniqueIdentity("alice")
			now := time.Now()

			if _, err := attempts.RecordAttempt(ctx, id, false, now, time.Hour); err != nil {
				t.Fatalf("record failure: %v", err)
			}
			c, err := attempts.RecordAttempt(ctx, id, true, now.Add(time.Second), time.Hour)
			if err != nil {
				t.Fatalf("record success: %v", err)
			}
			if c.Success != 1 || c.Failed != 1 {
				t.Errorf("unexpected counters %+v", c)
			}

			n, err := attempts.FailuresSince(ctx, id, now.Add(-time.Minute))
			if err != nil {
				t.Fatalf("failures since: %v", err)
			}
			if n != 1 {
				t.Errorf("expected 1 failure in window, got %d", n)
			}

			if err := attempts.ResetFailures(ctx, id, true); err != nil {
				t.Fatalf("reset: %v", err)
			}
		})
	}
}

// TestRedisCompat_ProfileFlagUpdate validates the WATCH-based enable flag
// update across backends.
func TestRedisCompat_ProfileFlagUpdate(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			profiles := stores.NewProfileStore(rdb, "fa")
			ctx := context.Background()
			id := uniqueIdentity("bob")

			if err := profiles.SetEnabled(ctx, id, false); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("expected ErrNotFound for missing profile, got %v", err)
			}

			err := profiles.SaveProfile(ctx, store.Profile{
				Identity:     id,
				Embedding:    []float64{0.5, 0.5},
				Enabled:      true,
				RegisteredAt: time.Now(),
			})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := profiles.SetEnabled(ctx, id, false); err != nil {
				t.Fatalf("disable: %v", err)
			}

			got, err := profiles.GetProfile(ctx, id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Enabled {
				t.Error("expected profile disabled")
			}
			if len(got.Embedding) != 2 || got.Embedding[0] != 0.5 {
				t.Errorf("embedding must survive a flag update, got %v", got.Embedding)
			}
		})
	}
}

// TestRedisCompat_StepUpVerifiedOnce validates that concurrent verifications
// of one challenge produce a single winner across backends.
func TestRedisCompat_StepUpVerifiedOnce(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			challenges := stores.NewStepUpStore(rdb, "fa", nil)
			ctx := context.Background()
			id := uniqueIdentity("challenge")

			err := challenges.Save(ctx, id, &stores.StepUpChallenge{
				Identity:   "alice",
				SessionRef: "sess-1",
				ExpiresAt:  time.Now().Add(time.Minute).Unix(),
			}, time.Minute)
			if err != nil {
				t.Fatalf("save: %v", err)
			}

			const workers = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					changed, err := challenges.MarkVerified(ctx, id)
					if err != nil {
						// Contention exhaustion is the only acceptable failure.
						if !errors.Is(err, stores.ErrStepUpChallengeBackend) {
							t.Errorf("unexpected mark error: %v", err)
						}
						return
					}
					if changed {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if wins != 1 {
				t.Errorf("expected exactly one winner, got %d", wins)
			}
			if _, err := challenges.Delete(ctx, id); err != nil {
				t.Fatalf("delete: %v", err)
			}
		})
	}
}
