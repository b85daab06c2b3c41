package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goFaceAuth/store"
	"github.com/google/uuid"
)

// newTestStore needs a disposable database in FACEAUTH_TEST_DATABASE_URL.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("FACEAUTH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FACEAUTH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(pool.Close)

	s := New(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return s
}

func TestProfileRoundTripAndReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := "pg-" + uuid.NewString()

	if _, err := s.GetProfile(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.SaveProfile(ctx, store.Profile{Identity: id, Embedding: []float64{0.1, 0.2}, Enabled: true, RegisteredAt: at}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	if err := s.SaveProfile(ctx, store.Profile{Identity: id, Embedding: []float64{0.3, 0.4, 0.5}, Enabled: true, RegisteredAt: at}); err != nil {
		t.Fatalf("SaveProfile replace failed: %v", err)
	}

	p, err := s.GetProfile(ctx, id)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if len(p.Embedding) != 3 || p.Embedding[2] != 0.5 || !p.RegisteredAt.Equal(at) {
		t.Fatalf("unexpected profile %+v", p)
	}

	if err := s.SetEnabled(ctx, id, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if p, _ := s.GetProfile(ctx, id); p.Enabled {
		t.Fatal("expected profile disabled")
	}
	if err := s.SetEnabled(ctx, "pg-missing-"+uuid.NewString(), false); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttemptsConcurrentAndWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := "pg-" + uuid.NewString()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			if _, err := s.RecordAttempt(ctx, id, ok, now, time.Hour); err != nil {
				t.Errorf("RecordAttempt failed: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	c, err := s.Counters(ctx, id)
	if err != nil {
		t.Fatalf("Counters failed: %v", err)
	}
	if c.Success != 10 || c.Failed != 10 {
		t.Fatalf("unexpected counters %+v", c)
	}

	n, err := s.FailuresSince(ctx, id, now.Add(-time.Minute))
	if err != nil || n != 10 {
		t.Fatalf("FailuresSince = %d, %v", n, err)
	}

	if err := s.ResetFailures(ctx, id, false); err != nil {
		t.Fatalf("ResetFailures failed: %v", err)
	}
	if n, _ := s.FailuresSince(ctx, id, now.Add(-time.Minute)); n != 0 {
		t.Fatalf("expected empty window, got %d", n)
	}
	if c, _ := s.Counters(ctx, id); c.Failed != 10 {
		t.Fatalf("counters must survive a window reset, got %+v", c)
	}
}

func TestProfileRowDefaultsRequireLiveness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := "pg-" + uuid.NewString()

	if _, err := s.db.Exec(ctx,
		`INSERT INTO face_profiles (identity, embedding, registered_at) VALUES ($1, $2, $3)`,
		id, []float64{0.1, 0.2}, time.Now().UTC(),
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	p, err := s.GetProfile(ctx, id)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if !p.Enabled || !p.LivenessRequired {
		t.Fatalf("expected enabled liveness-required defaults, got %+v", p)
	}
}
