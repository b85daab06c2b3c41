package goFaceAuth

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/MrEthical07/goFaceAuth/provider"
)

// Config is the complete engine configuration. Obtain a populated value
// with [DefaultConfig] and adjust the sections you need.
type Config struct {
	FaceAuth FaceAuthConfig
	Match    MatchConfig
	Liveness LivenessConfig
	Lockout  LockoutConfig
	MFA      MFAConfig
	Provider ProviderConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Store    StoreConfig
	Throttle ThrottleConfig
}

/*
====================================
FEATURE FLAGS
====================================
*/

// FaceAuthConfig is the master switch. When Enabled is false every
// enrollment and authentication call fails with ErrFeatureDisabled.
type FaceAuthConfig struct {
	Enabled bool
}

/*
====================================
MATCH CONFIG
====================================
*/

// MatchConfig holds the raw distance threshold. It is independent of
// MFAConfig.ConfidenceThreshold.
type MatchConfig struct {
	DistanceThreshold float64
}

/*
====================================
LIVENESS CONFIG
====================================
*/

// LivenessConfig controls multi-frame liveness evaluation.
// ConfidenceThreshold is a percentage (70 means aggregate >= 70).
type LivenessConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
	MinFrames           int
	MaxMovementFrames   int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig is the sliding-window failure policy.
type LockoutConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig controls the face step-up gate. ConfidenceThreshold is a
// percentage that a successful match must strictly exceed.
type MFAConfig struct {
	Enabled             bool
	ConfidenceThreshold float64
	ChallengeTTL        time.Duration
	ProofTTL            time.Duration
	SigningMethod       string // "hs256" (default) or "ed25519"
	SigningKey          []byte
	VerifyKey           []byte
	Issuer              string
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig bounds calls to the recognition provider.
type ProviderConfig struct {
	MinPayloadBytes int
	EmbedTimeout    time.Duration
	LivenessTimeout time.Duration
	SignalTimeout   time.Duration
}

// AuditConfig controls asynchronous audit dispatch. RedisLog additionally
// keeps a capped per-identity history in Redis for AuditHistory queries.
// AuditConfig controls audit dispatch. Without DropIfFull a full buffer
// makes the engine wait up to EmitTimeout for room before dropping the
// record; the verdict is never held longer than that.
type AuditConfig struct {
	Enabled        bool
	BufferSize     int
	DropIfFull     bool
	EmitTimeout    time.Duration
	RedisLog       bool
	RedisLogMaxLen int64
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type StoreConfig struct {
	RedisPrefix string
}

// ThrottleConfig caps request volume independently of lockout. A zero
// budget disables the corresponding limiter.
type ThrottleConfig struct {
	EnrollMaxRequests int
	EnrollWindow      time.Duration
	OriginMaxRequests int
	OriginWindow      time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: face auth and liveness
// on, step-up off, five failures per hour.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pdef := provider.DefaultConfig()
	return Config{
		FaceAuth: FaceAuthConfig{
			Enabled: true,
		},
		Match: MatchConfig{
			DistanceThreshold: 0.6,
		},
		Liveness: LivenessConfig{
			Enabled:             true,
			ConfidenceThreshold: 70,
			MinFrames:           3,
			MaxMovementFrames:   5,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			Window:            time.Hour,
		},
		MFA: MFAConfig{
			Enabled:             false,
			ConfidenceThreshold: 85,
			ChallengeTTL:        5 * time.Minute,
			ProofTTL:            2 * time.Minute,
			SigningMethod:       "hs256",
			Issuer:              "goFaceAuth",
		},
		Provider: ProviderConfig{
			MinPayloadBytes: pdef.MinPayloadBytes,
			EmbedTimeout:    pdef.EmbedTimeout,
			LivenessTimeout: pdef.LivenessTimeout,
			SignalTimeout:   pdef.SignalTimeout,
		},
		Audit: AuditConfig{
			Enabled:        true,
			BufferSize:     1024,
			DropIfFull:     true,
			EmitTimeout:    250 * time.Millisecond,
			RedisLog:       true,
			RedisLogMaxLen: 1000,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Store: StoreConfig{
			RedisPrefix: "fa",
		},
		Throttle: ThrottleConfig{
			EnrollWindow: time.Hour,
			OriginWindow: time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.MFA.SigningKey = cloneBytes(cfg.MFA.SigningKey)
	out.MFA.VerifyKey = cloneBytes(cfg.MFA.VerifyKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// Match
	d := c.Match.DistanceThreshold
	if math.IsNaN(d) || d <= 0 || d > 2 {
		return errors.New("Match DistanceThreshold must be in (0, 2]")
	}

	// Liveness
	if c.Liveness.Enabled {
		if c.Liveness.ConfidenceThreshold <= 0 || c.Liveness.ConfidenceThreshold > 100 {
			return errors.New("Liveness ConfidenceThreshold must be in (0, 100]")
		}
		if c.Liveness.MinFrames < 3 {
			return errors.New("Liveness MinFrames must be >= 3")
		}
		if c.Liveness.MaxMovementFrames < c.Liveness.MinFrames {
			return errors.New("Liveness MaxMovementFrames must be >= MinFrames")
		}
	}

	// Lockout
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout MaxFailedAttempts must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// MFA
	if c.MFA.Enabled {
		if c.MFA.ConfidenceThreshold <= 0 || c.MFA.ConfidenceThreshold >= 100 {
			return errors.New("MFA ConfidenceThreshold must be in (0, 100)")
		}
		if c.MFA.ChallengeTTL <= 0 {
			return errors.New("MFA ChallengeTTL must be > 0")
		}
		if c.MFA.ProofTTL <= 0 {
			return errors.New("MFA ProofTTL must be > 0")
		}
		if c.MFA.ProofTTL > c.MFA.ChallengeTTL {
			return errors.New("MFA ProofTTL must be <= ChallengeTTL")
		}
		switch strings.ToLower(c.MFA.SigningMethod) {
		case "hs256", "ed25519":
		default:
			return errors.New("unsupported MFA signing method")
		}
		if len(c.MFA.SigningKey) == 0 {
			return errors.New("MFA SigningKey is required when step-up is enabled")
		}
	}

	// Provider
	if c.Provider.MinPayloadBytes < 0 {
		return errors.New("Provider MinPayloadBytes must be >= 0")
	}
	if c.Provider.EmbedTimeout < 0 || c.Provider.LivenessTimeout < 0 || c.Provider.SignalTimeout < 0 {
		return errors.New("Provider timeouts must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull && c.Audit.EmitTimeout <= 0 {
		return errors.New("Audit EmitTimeout must be > 0 when DropIfFull is false")
	}
	if c.Audit.RedisLogMaxLen < 0 {
		return errors.New("Audit RedisLogMaxLen must be >= 0")
	}

	// Store
	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return errors.New("Store RedisPrefix is required")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " \t\n") {
		return errors.New("Store RedisPrefix must not contain whitespace")
	}

	// Throttle
	if c.Throttle.EnrollMaxRequests < 0 || c.Throttle.OriginMaxRequests < 0 {
		return errors.New("Throttle budgets must be >= 0")
	}
	if c.Throttle.EnrollMaxRequests > 0 && c.Throttle.EnrollWindow <= 0 {
		return errors.New("Throttle EnrollWindow must be > 0 when EnrollMaxRequests is set")
	}
	if c.Throttle.OriginMaxRequests > 0 && c.Throttle.OriginWindow <= 0 {
		return errors.New("Throttle OriginWindow must be > 0 when OriginMaxRequests is set")
	}

	return nil
}

func (c *Config) providerConfig() provider.Config {
	return provider.Config{
		MinPayloadBytes: c.Provider.MinPayloadBytes,
		EmbedTimeout:    c.Provider.EmbedTimeout,
		LivenessTimeout: c.Provider.LivenessTimeout,
		SignalTimeout:   c.Provider.SignalTimeout,
	}
}
