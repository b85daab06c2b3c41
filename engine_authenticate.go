package goFaceAuth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goFaceAuth/internal/limiters"
	"github.com/MrEthical07/goFaceAuth/liveness"
	"github.com/MrEthical07/goFaceAuth/match"
	"github.com/MrEthical07/goFaceAuth/store"
)

// attemptPolicy tailors the record and audit step to the caller. accept
// may reject a match for the audit trail (the step-up gate's confidence
// floor); the tracker still records the match itself.
type attemptPolicy struct {
	event  string
	accept func(v *Verdict) error
}

var authenticationPolicy = attemptPolicy{event: AuditEventAuthentication}

// Authenticate decides whether req's image is the enrolled face of
// req.Identity.
//
// Gates run in order: identity validation, profile lookup, payload
// validation, lockout, liveness (when enabled and required by the profile
// or the request), embedding and match. A genuine negative returns both a Verdict and ErrNoMatch or
// ErrNotLive, and counts as a failed attempt. Attempts aborted before a
// decision (invalid input, provider failure, cancellation) record no
// counters. Every outcome is audited.
func (e *Engine) Authenticate(ctx context.Context, req AuthenticateRequest) (*Verdict, error) {
	return e.authenticate(ctx, req, authenticationPolicy)
}

// Login is Authenticate shaped for a login form.
func (e *Engine) Login(ctx context.Context, identity string, image []byte, frames [][]byte) (*LoginResult, error) {
	v, err := e.Authenticate(ctx, AuthenticateRequest{
		Identity: identity,
		Image:    image,
		Frames:   frames,
	})
	if v == nil {
		return nil, err
	}
	return &LoginResult{Eligible: v.Success, Confidence: v.Confidence}, err
}

func (e *Engine) authenticate(ctx context.Context, req AuthenticateRequest, policy attemptPolicy) (*Verdict, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.FaceAuth.Enabled {
		return nil, ErrFeatureDisabled
	}

	start := time.Now()
	defer func() {
		e.metricObserve(MetricAuthenticateLatency, time.Since(start))
	}()

	identity := req.Identity
	if err := validateIdentity(identity); err != nil {
		return nil, e.reject(ctx, policy, identity, err)
	}

	// A missing or disabled profile is reported whatever the payload.
	profile, err := e.enabledProfile(ctx, identity)
	if err != nil {
		return nil, e.reject(ctx, policy, identity, err)
	}

	if err := e.validateImage(req.Image); err != nil {
		return nil, e.reject(ctx, policy, identity, err)
	}
	if err := e.validateFrames(req.Frames); err != nil {
		return nil, e.reject(ctx, policy, identity, err)
	}
	if err := e.allowOrigin(ctx); err != nil {
		return nil, e.reject(ctx, policy, identity, err)
	}

	locked, failures, err := e.tracker.IsLocked(ctx, identity)
	if err != nil {
		return nil, e.reject(ctx, policy, identity, storeError(err))
	}
	if locked {
		e.metricInc(MetricAuthLocked)
		return nil, e.reject(ctx, policy, identity, fmt.Errorf("%w: %d failures in %s", ErrLocked, failures, e.config.Lockout.Window))
	}

	verdict := &Verdict{Identity: identity}

	if e.livenessApplies(profile, req) {
		res, state, err := liveness.Evaluate(ctx, e.provider, e.livenessConfig(), req.Frames)
		switch {
		case errors.Is(err, liveness.ErrInsufficientFrames):
			return nil, e.reject(ctx, policy, identity, fmt.Errorf("%w: %v", ErrInsufficientFrames, err))
		case err != nil:
			e.metricInc(MetricLivenessAborted)
			return nil, e.reject(ctx, policy, identity, providerError(err))
		}
		verdict.Liveness = &res
		if state != liveness.Live {
			e.metricInc(MetricLivenessNotLive)
			verdict.Reason = AuditReasonNotLive
			return e.conclude(ctx, policy, verdict, ErrNotLive)
		}
		e.metricInc(MetricLivenessLive)
	}

	presented, err := e.provider.Embed(ctx, req.Image)
	if err != nil {
		return nil, e.reject(ctx, policy, identity, providerError(err))
	}

	result, err := match.Compare(profile.Embedding, presented, e.config.Match.DistanceThreshold)
	if err != nil {
		return nil, e.reject(ctx, policy, identity, fmt.Errorf("%w: stored %d, presented %d", ErrDimensionMismatch, len(profile.Embedding), len(presented)))
	}

	verdict.Success = result.Match
	verdict.Confidence = result.Confidence
	verdict.Distance = result.Distance
	if !result.Match {
		verdict.Reason = AuditReasonNoMatch
		return e.conclude(ctx, policy, verdict, ErrNoMatch)
	}
	return e.conclude(ctx, policy, verdict, nil)
}

func (e *Engine) livenessApplies(profile *BiometricProfile, req AuthenticateRequest) bool {
	return e.config.Liveness.Enabled && (profile.LivenessRequired || req.RequireLiveness)
}

// enabledProfile loads identity's profile and rejects missing or disabled
// ones.
func (e *Engine) enabledProfile(ctx context.Context, identity string) (*BiometricProfile, error) {
	profile, err := e.profiles.GetProfile(ctx, identity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, storeError(err)
	}
	if !profile.Enabled {
		return nil, ErrFaceAuthNotEnabled
	}
	return profile, nil
}

func (e *Engine) allowOrigin(ctx context.Context) error {
	if err := e.originLimiter.Allow(ctx, clientIPFromContext(ctx)); err != nil {
		return e.limiterError(err)
	}
	return nil
}

func (e *Engine) limiterError(err error) error {
	if errors.Is(err, limiters.ErrRequestRateLimited) {
		e.metricInc(MetricRateLimitHit)
		return ErrRateLimited
	}
	return storeError(err)
}

// conclude records the decided attempt and audits it. It runs detached from
// caller cancellation so the counters and the audit record are never
// half-written.
func (e *Engine) conclude(ctx context.Context, policy attemptPolicy, v *Verdict, cause error) (*Verdict, error) {
	ctx = context.WithoutCancel(ctx)

	counters, err := e.tracker.RecordAttempt(ctx, v.Identity, v.Success)
	if err != nil {
		return nil, e.reject(ctx, policy, v.Identity, storeError(err))
	}
	v.Counters = counters

	outcome := cause
	if outcome == nil && policy.accept != nil {
		outcome = policy.accept(v)
	}

	if v.Success {
		e.metricInc(MetricAuthSuccess)
	} else {
		e.metricInc(MetricAuthFailure)
		if errors.Is(cause, ErrNoMatch) {
			e.metricInc(MetricAuthNoMatch)
		} else if errors.Is(cause, ErrNotLive) {
			e.metricInc(MetricAuthNotLive)
		}
	}

	e.emitAudit(ctx, policy.event, outcome == nil, v.Identity, v.Confidence, outcome, func() map[string]string {
		md := countersMetadata(counters)
		if v.Distance > 0 || v.Success {
			md["distance"] = strconv.FormatFloat(v.Distance, 'f', 4, 64)
		}
		if v.Liveness != nil {
			md["liveness_confidence"] = strconv.FormatFloat(v.Liveness.Confidence, 'f', 2, 64)
		}
		return md
	})

	if cause != nil {
		return v, cause
	}
	return v, nil
}

// reject audits an attempt that ended before a decision. Counters are not
// touched.
func (e *Engine) reject(ctx context.Context, policy attemptPolicy, identity string, err error) error {
	e.metricInc(MetricAuthFailure)
	if errors.Is(err, ErrProviderUnavailable) {
		e.metricInc(MetricProviderUnavailable)
	}
	e.emitAudit(context.WithoutCancel(ctx), policy.event, false, identity, 0, err, nil)
	return err
}
