package goFaceAuth

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/goFaceAuth/internal/limiters"
	"github.com/MrEthical07/goFaceAuth/internal/stores"
	"github.com/MrEthical07/goFaceAuth/jwt"
	"github.com/MrEthical07/goFaceAuth/provider"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/redis/go-redis/v9"
)

const stepUpProofAudience = "face-step-up"

// Builder assembles an [Engine]. Configure it during initialization; a
// Builder can be built once.
type Builder struct {
	config   Config
	redis    *redis.Client
	provider provider.Client

	profiles ProfileStore
	attempts AttemptStore

	auditSink AuditSink
	logger    *logr.Logger
	now       func() time.Time

	built bool
}

// New returns a builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the default stores, step-up
// challenges, throttles and the audit history.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the recognition provider. The engine wraps it with
// [provider.Guard] using Config.Provider.
func (b *Builder) WithProvider(client provider.Client) *Builder {
	b.provider = client
	return b
}

// WithProfileStore replaces the Redis profile store.
func (b *Builder) WithProfileStore(s ProfileStore) *Builder {
	b.profiles = s
	return b
}

// WithAttemptStore replaces the Redis attempt store.
func (b *Builder) WithAttemptStore(s AttemptStore) *Builder {
	b.attempts = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. The default writes
// through stdr to stderr.
func (b *Builder) WithLogger(logger logr.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.provider == nil {
		return nil, errors.New("recognition provider required")
	}

	if b.redis == nil {
		if cfg.MFA.Enabled {
			return nil, errors.New("MFA step-up requires redis client")
		}
		if cfg.Throttle.EnrollMaxRequests > 0 || cfg.Throttle.OriginMaxRequests > 0 {
			return nil, errors.New("Throttle requires redis client")
		}
		if b.profiles == nil || b.attempts == nil {
			return nil, errors.New("redis client required")
		}
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := stdr.New(log.New(os.Stderr, "goFaceAuth ", log.LstdFlags))
	if b.logger != nil {
		logger = *b.logger
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		provider: provider.Guard(b.provider, cfg.providerConfig()),
		log:      logger,
		now:      now,
	}

	prefix := cfg.Store.RedisPrefix

	// -------- STORES --------
	engine.profiles = b.profiles
	if engine.profiles == nil {
		engine.profiles = stores.NewProfileStore(b.redis, prefix)
	}
	attempts := b.attempts
	if attempts == nil {
		attempts = stores.NewAttemptStore(b.redis, prefix)
	}
	engine.tracker = limiters.NewTracker(attempts, limiters.TrackerConfig{
		MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
		Window:            cfg.Lockout.Window,
	}, now)

	// -------- THROTTLES --------
	if b.redis != nil {
		engine.enrollLimiter = limiters.NewRequestLimiter(b.redis, prefix+":t:enroll", limiters.RequestLimiterConfig{
			MaxRequests: cfg.Throttle.EnrollMaxRequests,
			Window:      cfg.Throttle.EnrollWindow,
		})
		engine.originLimiter = limiters.NewRequestLimiter(b.redis, prefix+":t:origin", limiters.RequestLimiterConfig{
			MaxRequests: cfg.Throttle.OriginMaxRequests,
			Window:      cfg.Throttle.OriginWindow,
		})
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if cfg.Audit.Enabled && cfg.Audit.RedisLog && b.redis != nil {
		engine.auditLog = stores.NewAuditLogStore(b.redis, prefix, cfg.Audit.RedisLogMaxLen)
		redisSink := &redisAuditSink{log: engine.auditLog, logger: logger.WithName("audit")}
		if sink == nil {
			sink = redisSink
		} else {
			sink = MultiSink{sink, redisSink}
		}
	}
	engine.audit = newAuditDispatcher(cfg.Audit, sink)
	engine.metrics = NewMetrics(cfg.Metrics)

	// -------- STEP-UP --------
	if cfg.MFA.Enabled {
		engine.challenges = stores.NewStepUpStore(b.redis, prefix, now)

		jm, err := jwt.NewManager(jwt.Config{
			TTL:           cfg.MFA.ProofTTL,
			SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.MFA.SigningMethod)),
			PrivateKey:    cloneBytes(cfg.MFA.SigningKey),
			PublicKey:     cloneBytes(cfg.MFA.VerifyKey),
			Issuer:        cfg.MFA.Issuer,
			Audience:      stepUpProofAudience,
		}, now)
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.proofs = jm
	}

	b.built = true

	return engine, nil
}
