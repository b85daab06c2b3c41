package goFaceAuth

import (
	"context"
	"errors"
	"strconv"
)

// Register enrolls image as identity's face. The caller must already have
// authenticated identity by other means.
//
// The new profile replaces any prior one in a single write, enabled and
// with liveness required. On provider or store failure the prior profile,
// if any, is left untouched.
func (e *Engine) Register(ctx context.Context, identity string, image []byte) (*BiometricProfile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.FaceAuth.Enabled {
		return nil, ErrFeatureDisabled
	}

	if err := validateIdentity(identity); err != nil {
		return nil, e.enrollFailed(ctx, identity, err)
	}
	if err := e.validateImage(image); err != nil {
		return nil, e.enrollFailed(ctx, identity, err)
	}
	if err := e.enrollLimiter.Allow(ctx, identity); err != nil {
		return nil, e.enrollFailed(ctx, identity, e.limiterError(err))
	}

	embedding, err := e.provider.Embed(ctx, image)
	if err != nil {
		return nil, e.enrollFailed(ctx, identity, providerError(err))
	}

	profile := BiometricProfile{
		Identity:         identity,
		Embedding:        embedding,
		Enabled:          true,
		RegisteredAt:     e.now().UTC(),
		LivenessRequired: true,
	}
	if err := e.profiles.SaveProfile(context.WithoutCancel(ctx), profile); err != nil {
		return nil, e.enrollFailed(ctx, identity, storeError(err))
	}

	e.metricInc(MetricEnrollSuccess)
	e.emitAudit(ctx, AuditEventEnrollment, true, identity, 0, nil, func() map[string]string {
		return map[string]string{
			"dimension": strconv.Itoa(len(embedding)),
		}
	})

	out := profile.Clone()
	return &out, nil
}

func (e *Engine) enrollFailed(ctx context.Context, identity string, err error) error {
	e.metricInc(MetricEnrollFailure)
	if errors.Is(err, ErrProviderUnavailable) {
		e.metricInc(MetricProviderUnavailable)
	}
	e.emitAudit(context.WithoutCancel(ctx), AuditEventEnrollment, false, identity, 0, err, nil)
	return err
}
