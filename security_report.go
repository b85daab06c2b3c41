package goFaceAuth

import "time"

// SecurityReport summarises the thresholds an engine enforces.
type SecurityReport struct {
	FaceAuthEnabled           bool
	LivenessEnabled           bool
	LivenessThreshold         float64
	LivenessMinFrames         int
	MatchDistanceThreshold    float64
	StepUpEnabled             bool
	StepUpConfidenceThreshold float64
	StepUpSigningAlgorithm    string
	MaxFailedAttempts         int
	LockoutWindow             time.Duration
	EnrollThrottleActive      bool
	OriginThrottleActive      bool
	AuditEnabled              bool
	AuditHistoryEnabled       bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	r := SecurityReport{
		FaceAuthEnabled:        e.config.FaceAuth.Enabled,
		LivenessEnabled:        e.config.Liveness.Enabled,
		MatchDistanceThreshold: e.config.Match.DistanceThreshold,
		StepUpEnabled:          e.config.MFA.Enabled,
		MaxFailedAttempts:      e.config.Lockout.MaxFailedAttempts,
		LockoutWindow:          e.config.Lockout.Window,
		EnrollThrottleActive:   e.enrollLimiter != nil,
		OriginThrottleActive:   e.originLimiter != nil,
		AuditEnabled:           e.audit != nil,
		AuditHistoryEnabled:    e.auditLog != nil,
	}
	if r.LivenessEnabled {
		r.LivenessThreshold = e.config.Liveness.ConfidenceThreshold
		r.LivenessMinFrames = e.config.Liveness.MinFrames
	}
	if r.StepUpEnabled {
		r.StepUpConfidenceThreshold = e.config.MFA.ConfidenceThreshold
		r.StepUpSigningAlgorithm = e.config.MFA.SigningMethod
	}
	return r
}
