// Package providertest supplies an in-memory recognition provider for tests
// and local demos. It performs no image analysis.
package providertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goFaceAuth/provider"
)

// Static resolves an image to the embedding registered for its first byte.
// Images with an unregistered first byte are refused as payloads without a
// face.
type Static struct {
	mu         sync.RWMutex
	embeddings map[byte][]float64
	signal     provider.LivenessSignal
	blink      bool
	movement   bool
	failure    error

	embedCalls atomic.Int64
}

// New returns a provider that reports every frame sequence as live.
func New() *Static {
	return &Static{
		embeddings: make(map[byte][]float64),
		signal:     provider.LivenessSignal{IsLive: true, Confidence: 100},
		blink:      true,
		movement:   true,
	}
}

// Set registers the embedding returned for images starting with tag.
func (s *Static) Set(tag byte, embedding []float64) *Static {
	s.mu.Lock()
	s.embeddings[tag] = append([]float64(nil), embedding...)
	s.mu.Unlock()
	return s
}

// SetLiveness fixes the liveness signal and the blink and movement cues.
func (s *Static) SetLiveness(signal provider.LivenessSignal, blink, movement bool) {
	s.mu.Lock()
	s.signal = signal
	s.blink = blink
	s.movement = movement
	s.mu.Unlock()
}

// Fail makes every subsequent call return err. A nil err restores service.
func (s *Static) Fail(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// EmbedCalls reports how many Embed calls reached the provider.
func (s *Static) EmbedCalls() int64 {
	return s.embedCalls.Load()
}

func (s *Static) Embed(ctx context.Context, image []byte) ([]float64, error) {
	s.embedCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	if len(image) == 0 {
		return nil, provider.ErrInvalidPayload
	}
	vec, ok := s.embeddings[image[0]]
	if !ok {
		return nil, provider.ErrInvalidPayload
	}
	return append([]float64(nil), vec...), nil
}

func (s *Static) Liveness(ctx context.Context, _ [][]byte) (provider.LivenessSignal, error) {
	if err := ctx.Err(); err != nil {
		return provider.LivenessSignal{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return provider.LivenessSignal{}, s.failure
	}
	return s.signal, nil
}

func (s *Static) Blink(ctx context.Context, _, _, _ []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	return s.blink, ctx.Err()
}

func (s *Static) Movement(ctx context.Context, _ [][]byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	return s.movement, ctx.Err()
}

// Image returns a payload of n bytes that resolves to tag's embedding.
func Image(tag byte, n int) []byte {
	if n < 1 {
		n = 1
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = tag
	}
	return out
}

var _ provider.Client = (*Static)(nil)
