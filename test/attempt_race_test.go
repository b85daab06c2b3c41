//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
)

func TestConcurrentAttemptsLoseNoIncrements(t *testing.T) {
	cfg := integrationConfig()
	cfg.Lockout.MaxFailedAttempts = 1000
	engine, _, _, cleanup := newIntegrationEngine(t, cfg)
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Register(ctx, "alice", face('a')); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		tag := byte('A')
		if i%2 == 1 {
			tag = 'b'
		}
		go func(tag byte) {
			defer wg.Done()
			<-start
			_, err := engine.Authenticate(ctx, goFaceAuth.AuthenticateRequest{Identity: "alice", Image: face(tag)})
			results <- err
		}(tag)
	}

	close(start)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil && !errors.Is(err, goFaceAuth.ErrNoMatch) {
			t.Fatalf("unexpected authenticate error: %v", err)
		}
	}

	counters, err := engine.AttemptCounters(ctx, "alice")
	if err != nil {
		t.Fatalf("AttemptCounters failed: %v", err)
	}
	if counters.Success != workers/2 || counters.Failed != workers/2 {
		t.Fatalf("expected %d/%d, got success=%d failed=%d", workers/2, workers/2, counters.Success, counters.Failed)
	}
}

func TestConcurrentFailuresEndLocked(t *testing.T) {
	cfg := integrationConfig()
	engine, _, _, cleanup := newIntegrationEngine(t, cfg)
	defer cleanup()

	ctx := context.Background()
	if _, err := engine.Register(ctx, "alice", face('a')); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Authenticate(ctx, goFaceAuth.AuthenticateRequest{Identity: "alice", Image: face('b')})
			if err != nil && !errors.Is(err, goFaceAuth.ErrNoMatch) && !errors.Is(err, goFaceAuth.ErrLocked) {
				t.Errorf("unexpected authenticate error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	locked, err := engine.IsLocked(ctx, "alice")
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if !locked {
		t.Fatal("expected identity to be locked after concurrent failures")
	}

	counters, err := engine.AttemptCounters(ctx, "alice")
	if err != nil {
		t.Fatalf("AttemptCounters failed: %v", err)
	}
	if counters.Failed < uint64(cfg.Lockout.MaxFailedAttempts) || counters.Failed > workers {
		t.Fatalf("failed counter out of range: %d", counters.Failed)
	}
}
