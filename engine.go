package goFaceAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/MrEthical07/goFaceAuth/internal/limiters"
	"github.com/MrEthical07/goFaceAuth/internal/stores"
	"github.com/MrEthical07/goFaceAuth/jwt"
	"github.com/MrEthical07/goFaceAuth/liveness"
	"github.com/MrEthical07/goFaceAuth/provider"
	"github.com/go-logr/logr"
)

const maxIdentityLength = 256

// Engine orchestrates enrollment, face authentication, the step-up gate and
// the audit trail. It is safe for concurrent use; no lock is held across
// identities.
type Engine struct {
	config   Config
	provider provider.Client
	profiles ProfileStore
	tracker  *limiters.Tracker

	enrollLimiter *limiters.RequestLimiter
	originLimiter *limiters.RequestLimiter

	challenges *stores.StepUpStore
	proofs     *jwt.Manager

	auditLog *stores.AuditLogStore
	audit    *auditDispatcher
	metrics  *Metrics

	log logr.Logger
	now func() time.Time
}

// Close drains pending audit records. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports records discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() error {
	if e == nil || e.provider == nil || e.profiles == nil || e.tracker == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) livenessConfig() liveness.Config {
	return liveness.Config{
		MinFrames:         e.config.Liveness.MinFrames,
		MaxMovementFrames: e.config.Liveness.MaxMovementFrames,
		Threshold:         e.config.Liveness.ConfidenceThreshold / 100,
		Logger:            e.log.WithName("liveness"),
	}
}

func validateIdentity(identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	if len(identity) > maxIdentityLength {
		return fmt.Errorf("%w: identity exceeds %d bytes", ErrInvalidInput, maxIdentityLength)
	}
	if strings.TrimSpace(identity) != identity {
		return fmt.Errorf("%w: identity has surrounding whitespace", ErrInvalidInput)
	}
	for _, r := range identity {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: identity contains control characters", ErrInvalidInput)
		}
	}
	return nil
}

func (e *Engine) validateImage(image []byte) error {
	if err := provider.ValidatePayload(image, e.config.Provider.MinPayloadBytes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (e *Engine) validateFrames(frames [][]byte) error {
	for i, f := range frames {
		if err := provider.ValidatePayload(f, e.config.Provider.MinPayloadBytes); err != nil {
			return fmt.Errorf("%w: frame %d: %v", ErrInvalidInput, i, err)
		}
	}
	return nil
}

// providerError maps a guarded provider failure onto the engine's error
// surface.
func providerError(err error) error {
	if errors.Is(err, provider.ErrInvalidPayload) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
