// Package config loads faceauthd settings from the environment and maps
// them onto an engine configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	"github.com/spf13/viper"
)

// Settings holds every environment-driven setting of the service.
type Settings struct {
	FaceAuthEnabled         bool          `mapstructure:"FACE_AUTH_ENABLED"`
	LivenessDetection       bool          `mapstructure:"LIVENESS_DETECTION"`
	FaceAuthAsMFA           bool          `mapstructure:"FACE_AUTH_AS_MFA"`
	FaceConfidenceThreshold float64       `mapstructure:"FACE_CONFIDENCE_THRESHOLD"`
	LivenessThreshold       float64       `mapstructure:"LIVENESS_THRESHOLD"`
	MatchDistanceThreshold  float64       `mapstructure:"MATCH_DISTANCE_THRESHOLD"`
	MaxFailedAttempts       int           `mapstructure:"MAX_FAILED_ATTEMPTS"`
	RateLimitWindow         time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMaxRequests    int           `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
	RateLimitRequestWindow  time.Duration `mapstructure:"RATE_LIMIT_REQUEST_WINDOW"`
	AuditLogging            bool          `mapstructure:"AUDIT_LOGGING"`

	ProviderURL      string `mapstructure:"PROVIDER_URL"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPrefix      string `mapstructure:"REDIS_PREFIX"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	AuditExchange    string `mapstructure:"AUDIT_EXCHANGE"`
	StepUpSigningKey string `mapstructure:"STEP_UP_SIGNING_KEY"`
	ServerPort       string `mapstructure:"SERVER_PORT"`
	MetricsEnabled   bool   `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"FACE_AUTH_ENABLED",
	"LIVENESS_DETECTION",
	"FACE_AUTH_AS_MFA",
	"FACE_CONFIDENCE_THRESHOLD",
	"LIVENESS_THRESHOLD",
	"MATCH_DISTANCE_THRESHOLD",
	"MAX_FAILED_ATTEMPTS",
	"RATE_LIMIT_WINDOW",
	"RATE_LIMIT_MAX_REQUESTS",
	"RATE_LIMIT_REQUEST_WINDOW",
	"AUDIT_LOGGING",
	"PROVIDER_URL",
	"REDIS_ADDR",
	"REDIS_PREFIX",
	"DATABASE_URL",
	"RABBITMQ_URL",
	"AUDIT_EXCHANGE",
	"STEP_UP_SIGNING_KEY",
	"SERVER_PORT",
	"METRICS_ENABLED",
}

// defaultRequestBudget is the per-origin request budget of the service.
// Zero turns the origin throttle off.
const defaultRequestBudget = 10

// LoadConfig reads settings from environment variables, falling back to
// the engine defaults.
func LoadConfig() (*Settings, error) {
	def := goFaceAuth.DefaultConfig()

	viper.SetDefault("FACE_AUTH_ENABLED", def.FaceAuth.Enabled)
	viper.SetDefault("LIVENESS_DETECTION", def.Liveness.Enabled)
	viper.SetDefault("FACE_AUTH_AS_MFA", def.MFA.Enabled)
	viper.SetDefault("FACE_CONFIDENCE_THRESHOLD", def.MFA.ConfidenceThreshold)
	viper.SetDefault("LIVENESS_THRESHOLD", def.Liveness.ConfidenceThreshold)
	viper.SetDefault("MATCH_DISTANCE_THRESHOLD", def.Match.DistanceThreshold)
	viper.SetDefault("MAX_FAILED_ATTEMPTS", def.Lockout.MaxFailedAttempts)
	viper.SetDefault("RATE_LIMIT_WINDOW", def.Lockout.Window.String())
	viper.SetDefault("RATE_LIMIT_MAX_REQUESTS", defaultRequestBudget)
	viper.SetDefault("RATE_LIMIT_REQUEST_WINDOW", def.Throttle.OriginWindow.String())
	viper.SetDefault("AUDIT_LOGGING", def.Audit.Enabled)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PREFIX", def.Store.RedisPrefix)
	viper.SetDefault("AUDIT_EXCHANGE", "faceauth.audit")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("METRICS_ENABLED", true)
	viper.AutomaticEnv()

	// Bind explicitly so Unmarshal sees variables without defaults.
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, err
	}
	s.StepUpSigningKey = strings.TrimSpace(s.StepUpSigningKey)

	if s.ProviderURL == "" {
		return nil, errors.New("PROVIDER_URL is required")
	}
	if s.FaceAuthAsMFA && s.StepUpSigningKey == "" {
		return nil, errors.New("STEP_UP_SIGNING_KEY is required when FACE_AUTH_AS_MFA is set")
	}
	return &s, nil
}

// EngineConfig maps the settings onto the engine defaults and validates the
// result.
func (s *Settings) EngineConfig() (goFaceAuth.Config, error) {
	cfg := goFaceAuth.DefaultConfig()

	cfg.FaceAuth.Enabled = s.FaceAuthEnabled
	cfg.Liveness.Enabled = s.LivenessDetection
	cfg.Liveness.ConfidenceThreshold = s.LivenessThreshold
	cfg.Match.DistanceThreshold = s.MatchDistanceThreshold
	cfg.Lockout.MaxFailedAttempts = s.MaxFailedAttempts
	cfg.Lockout.Window = s.RateLimitWindow
	cfg.Throttle.OriginMaxRequests = s.RateLimitMaxRequests
	cfg.Throttle.OriginWindow = s.RateLimitRequestWindow
	cfg.Audit.Enabled = s.AuditLogging
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled
	cfg.Store.RedisPrefix = s.RedisPrefix

	cfg.MFA.Enabled = s.FaceAuthAsMFA
	cfg.MFA.ConfidenceThreshold = s.FaceConfidenceThreshold
	if s.StepUpSigningKey != "" {
		cfg.MFA.SigningKey = []byte(s.StepUpSigningKey)
	}

	if err := cfg.Validate(); err != nil {
		return goFaceAuth.Config{}, fmt.Errorf("invalid face auth settings: %w", err)
	}
	return cfg, nil
}
