package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable reports a provider timeout, transport error, or malformed
	// response. Callers must treat it as "try again", never as a rejection.
	ErrUnavailable = errors.New("recognition provider unavailable")
	// ErrInvalidPayload reports an image payload that is missing, undersized,
	// or that the provider refused to process.
	ErrInvalidPayload = errors.New("invalid image payload")
)

// LivenessSignal is the provider's verdict over a full frame sequence.
// Confidence is a percentage in [0, 100].
type LivenessSignal struct {
	IsLive     bool
	Confidence float64
	Details    map[string]any
}

// Client is the capability surface of the recognition provider.
type Client interface {
	Embed(ctx context.Context, image []byte) ([]float64, error)
	Liveness(ctx context.Context, frames [][]byte) (LivenessSignal, error)
	Blink(ctx context.Context, first, second, third []byte) (bool, error)
	Movement(ctx context.Context, frames [][]byte) (bool, error)
}

// Config bounds provider calls made through [Guard].
type Config struct {
	MinPayloadBytes int
	EmbedTimeout    time.Duration
	LivenessTimeout time.Duration
	SignalTimeout   time.Duration
}

// DefaultConfig returns the provider bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		MinPayloadBytes: 512,
		EmbedTimeout:    10 * time.Second,
		LivenessTimeout: 15 * time.Second,
		SignalTimeout:   10 * time.Second,
	}
}
