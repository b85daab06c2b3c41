package provider

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

type stubClient struct {
	calls     atomic.Int32
	embedding []float64
	signal    LivenessSignal
	err       error
	block     bool
}

func (s *stubClient) wait(ctx context.Context) error {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *stubClient) Embed(ctx context.Context, _ []byte) ([]float64, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.embedding, nil
}

func (s *stubClient) Liveness(ctx context.Context, _ [][]byte) (LivenessSignal, error) {
	if err := s.wait(ctx); err != nil {
		return LivenessSignal{}, err
	}
	return s.signal, nil
}

func (s *stubClient) Blink(ctx context.Context, _, _, _ []byte) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *stubClient) Movement(ctx context.Context, _ [][]byte) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func testImage() []byte {
	return bytes.Repeat([]byte{0xff}, 600)
}

func TestGuardRejectsEmptyPayloadBeforeCall(t *testing.T) {
	stub := &stubClient{embedding: []float64{0.1}}
	c := Guard(stub, Config{})

	if _, err := c.Embed(context.Background(), nil); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := c.Embed(context.Background(), []byte("tiny")); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for undersized image, got %v", err)
	}
	if _, err := c.Blink(context.Background(), testImage(), nil, testImage()); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for empty blink frame, got %v", err)
	}
	if _, err := c.Liveness(context.Background(), nil); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for empty frame set, got %v", err)
	}
	if n := stub.calls.Load(); n != 0 {
		t.Fatalf("provider must not be called for invalid payloads, got %d calls", n)
	}
}

func TestGuardTimeoutIsUnavailable(t *testing.T) {
	stub := &stubClient{block: true}
	c := Guard(stub, Config{EmbedTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Embed(context.Background(), testImage())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause to be preserved, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("embed call was not bounded by EmbedTimeout")
	}
}

func TestGuardCallerCancellationIsUnavailable(t *testing.T) {
	stub := &stubClient{block: true}
	c := Guard(stub, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Liveness(ctx, [][]byte{testImage()})
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected ErrUnavailable wrapping context.Canceled, got %v", err)
	}
}

func TestGuardProviderErrorIsUnavailable(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}
	c := Guard(stub, Config{})

	if _, err := c.Movement(context.Background(), [][]byte{testImage()}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGuardProviderPayloadRejectionPassesThrough(t *testing.T) {
	stub := &stubClient{err: ErrInvalidPayload}
	c := Guard(stub, Config{})

	_, err := c.Embed(context.Background(), testImage())
	if !errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected bare ErrInvalidPayload, got %v", err)
	}
}

func TestGuardRejectsMalformedProviderAnswers(t *testing.T) {
	stub := &stubClient{embedding: []float64{0.2, math.NaN()}}
	c := Guard(stub, Config{})
	if _, err := c.Embed(context.Background(), testImage()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for NaN embedding, got %v", err)
	}

	stub.embedding = nil
	if _, err := c.Embed(context.Background(), testImage()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty embedding, got %v", err)
	}

	stub.signal = LivenessSignal{IsLive: true, Confidence: 140}
	if _, err := c.Liveness(context.Background(), [][]byte{testImage()}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for out-of-range confidence, got %v", err)
	}
}

func TestGuardDoesNotDoubleWrap(t *testing.T) {
	stub := &stubClient{embedding: []float64{0.5}}
	inner := Guard(stub, Config{MinPayloadBytes: 10})
	outer := Guard(inner, Config{MinPayloadBytes: 700})

	if _, err := outer.Embed(context.Background(), testImage()); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected outer config to apply, got %v", err)
	}
}
