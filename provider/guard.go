package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type guarded struct {
	next Client
	cfg  Config
}

// Guard wraps next so every call validates its payloads first, runs under the
// configured time bound, and reports any provider-side failure as
// [ErrUnavailable]. Zero-valued bounds in cfg fall back to [DefaultConfig].
func Guard(next Client, cfg Config) Client {
	if g, ok := next.(*guarded); ok {
		next = g.next
	}
	def := DefaultConfig()
	if cfg.MinPayloadBytes <= 0 {
		cfg.MinPayloadBytes = def.MinPayloadBytes
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = def.LivenessTimeout
	}
	if cfg.SignalTimeout <= 0 {
		cfg.SignalTimeout = def.SignalTimeout
	}
	return &guarded{next: next, cfg: cfg}
}

// ValidatePayload rejects empty and undersized image payloads.
func ValidatePayload(image []byte, minBytes int) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidPayload)
	}
	if len(image) < minBytes {
		return fmt.Errorf("%w: image is %d bytes, minimum is %d", ErrInvalidPayload, len(image), minBytes)
	}
	return nil
}

func (g *guarded) validateFrames(frames [][]byte) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames", ErrInvalidPayload)
	}
	for i, f := range frames {
		if err := ValidatePayload(f, g.cfg.MinPayloadBytes); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

func (g *guarded) Embed(ctx context.Context, image []byte) ([]float64, error) {
	if err := ValidatePayload(image, g.cfg.MinPayloadBytes); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.EmbedTimeout)
	defer cancel()

	vec, err := g.next.Embed(callCtx, image)
	if err != nil {
		return nil, translate(callCtx, "embed", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embed: provider returned an empty embedding", ErrUnavailable)
	}
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: embed: provider returned a non-finite embedding", ErrUnavailable)
		}
	}
	return vec, nil
}

func (g *guarded) Liveness(ctx context.Context, frames [][]byte) (LivenessSignal, error) {
	if err := g.validateFrames(frames); err != nil {
		return LivenessSignal{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.LivenessTimeout)
	defer cancel()

	sig, err := g.next.Liveness(callCtx, frames)
	if err != nil {
		return LivenessSignal{}, translate(callCtx, "liveness", err)
	}
	if math.IsNaN(sig.Confidence) || sig.Confidence < 0 || sig.Confidence > 100 {
		return LivenessSignal{}, fmt.Errorf("%w: liveness: confidence %v out of range", ErrUnavailable, sig.Confidence)
	}
	return sig, nil
}

func (g *guarded) Blink(ctx context.Context, first, second, third []byte) (bool, error) {
	if err := g.validateFrames([][]byte{first, second, third}); err != nil {
		return false, err
	}
	return g.signal(ctx, "blink", func(callCtx context.Context) (bool, error) {
		return g.next.Blink(callCtx, first, second, third)
	})
}

func (g *guarded) Movement(ctx context.Context, frames [][]byte) (bool, error) {
	if err := g.validateFrames(frames); err != nil {
		return false, err
	}
	return g.signal(ctx, "movement", func(callCtx context.Context) (bool, error) {
		return g.next.Movement(callCtx, frames)
	})
}

func (g *guarded) signal(ctx context.Context, op string, call func(context.Context) (bool, error)) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.SignalTimeout)
	defer cancel()

	ok, err := call(callCtx)
	if err != nil {
		return false, translate(callCtx, op, err)
	}
	return ok, nil
}

// translate keeps provider-side payload rejections distinguishable and folds
// everything else, including deadline expiry, into ErrUnavailable.
func translate(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %s: %w (%v)", ErrUnavailable, op, ctxErr, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
