package goFaceAuth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func stepUpTestConfig() Config {
	cfg := engineTestConfig()
	cfg.MFA.Enabled = true
	cfg.MFA.SigningKey = []byte(strings.Repeat("s", 32))
	return cfg
}

func newStepUpEngine(t *testing.T, cfg Config) (*Engine, *fakeProvider) {
	t.Helper()
	fp := newFakeProvider()
	// Matches 'a' at distance 0.2: a match, but only 80% confidence.
	fp.embeddings['m'] = []float64{0.30, 0.20, 0.30, 0.40}
	engine := newTestEngine(t, cfg, fp, nil)
	if _, err := engine.Register(context.Background(), "alice", faceImage('a')); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return engine, fp
}

func TestStepUpDisabledIsPassThrough(t *testing.T) {
	engine, _ := newStepUpEngine(t, engineTestConfig())
	ctx := context.Background()

	ch, err := engine.BeginStepUp(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("BeginStepUp failed: %v", err)
	}
	if ch.Required || ch.ID != "" {
		t.Fatalf("disabled gate must not require a challenge, got %+v", ch)
	}
	ok, err := engine.StepUpSatisfied(ctx, ch.ID)
	if err != nil || !ok {
		t.Fatalf("StepUpSatisfied = %v, %v", ok, err)
	}
	if _, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('a'), nil); !errors.Is(err, ErrStepUpDisabled) {
		t.Fatalf("expected ErrStepUpDisabled, got %v", err)
	}
}

func TestStepUpVerifiesAboveThreshold(t *testing.T) {
	engine, _ := newStepUpEngine(t, stepUpTestConfig())
	ctx := context.Background()

	ch, err := engine.BeginStepUp(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("BeginStepUp failed: %v", err)
	}
	if !ch.Required || ch.Verified || ch.ID == "" {
		t.Fatalf("unexpected challenge %+v", ch)
	}
	if ok, _ := engine.StepUpSatisfied(ctx, ch.ID); ok {
		t.Fatal("pending challenge must not satisfy the gate")
	}

	res, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('A'), nil)
	if err != nil {
		t.Fatalf("VerifyStepUp failed: %v", err)
	}
	if !res.Verified || res.Proof == "" || res.Confidence <= 85 {
		t.Fatalf("unexpected result %+v", res)
	}
	if ok, _ := engine.StepUpSatisfied(ctx, ch.ID); !ok {
		t.Fatal("verified challenge must satisfy the gate")
	}

	proof, err := engine.VerifyStepUpProof(ctx, res.Proof)
	if err != nil {
		t.Fatalf("VerifyStepUpProof failed: %v", err)
	}
	if proof.Identity != "alice" || proof.SessionRef != "session-1" || proof.ChallengeID != ch.ID {
		t.Fatalf("unexpected proof %+v", proof)
	}

	if _, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('A'), nil); !errors.Is(err, ErrStepUpChallengeInvalid) {
		t.Fatalf("expected replay to be rejected, got %v", err)
	}

	if err := engine.EndStepUp(ctx, ch.ID); err != nil {
		t.Fatalf("EndStepUp failed: %v", err)
	}
	if _, err := engine.VerifyStepUpProof(ctx, res.Proof); !errors.Is(err, ErrStepUpProofInvalid) {
		t.Fatalf("proof must die with its challenge, got %v", err)
	}
}

func TestStepUpRejectsMatchBelowConfidenceThreshold(t *testing.T) {
	engine, _ := newStepUpEngine(t, stepUpTestConfig())
	ctx := context.Background()

	ch, err := engine.BeginStepUp(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("BeginStepUp failed: %v", err)
	}

	res, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('m'), nil)
	if !errors.Is(err, ErrStepUpRejected) {
		t.Fatalf("expected ErrStepUpRejected, got %v", err)
	}
	if res == nil || res.Verified || res.Proof != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if ok, _ := engine.StepUpSatisfied(ctx, ch.ID); ok {
		t.Fatal("low-confidence match must not satisfy the gate")
	}

	// The raw match still counts as a successful attempt.
	if c, _ := engine.AttemptCounters(ctx, "alice"); c.Success != 1 || c.Failed != 0 {
		t.Fatalf("unexpected counters %+v", c)
	}
}

func TestStepUpFailuresFlowIntoLockout(t *testing.T) {
	engine, fp := newStepUpEngine(t, stepUpTestConfig())
	ctx := context.Background()

	ch, err := engine.BeginStepUp(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("BeginStepUp failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('b'), nil); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("attempt %d: expected ErrNoMatch, got %v", i+1, err)
		}
	}

	calls := fp.embedCalls.Load()
	if _, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('A'), nil); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if fp.embedCalls.Load() != calls {
		t.Fatal("locked step-up must not reach the provider")
	}
}

func TestStepUpChallengeExpires(t *testing.T) {
	cfg := stepUpTestConfig()
	cfg.MFA.ChallengeTTL = time.Minute
	cfg.MFA.ProofTTL = 30 * time.Second

	now := time.Now()
	fp := newFakeProvider()
	_, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(fp).
		WithClock(func() time.Time { return now }).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if _, err := engine.Register(ctx, "alice", faceImage('a')); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	ch, err := engine.BeginStepUp(ctx, "session-1", "alice")
	if err != nil {
		t.Fatalf("BeginStepUp failed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := engine.VerifyStepUp(ctx, ch.ID, faceImage('a'), nil); !errors.Is(err, ErrStepUpChallengeExpired) {
		t.Fatalf("expected ErrStepUpChallengeExpired, got %v", err)
	}
}

func TestBeginStepUpRequiresEnabledProfile(t *testing.T) {
	engine, _ := newStepUpEngine(t, stepUpTestConfig())
	ctx := context.Background()

	if _, err := engine.BeginStepUp(ctx, "session-1", "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := engine.BeginStepUp(ctx, "", "alice"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := engine.VerifyStepUpProof(ctx, "not-a-token"); !errors.Is(err, ErrStepUpProofInvalid) {
		t.Fatalf("expected ErrStepUpProofInvalid, got %v", err)
	}
}
