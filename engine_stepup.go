package goFaceAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFaceAuth/internal/stores"
	"github.com/google/uuid"
)

// StepUpEnabled reports whether the face step-up gate is active. When it
// is not, the gate is a pass-through.
func (e *Engine) StepUpEnabled() bool {
	return e != nil && e.config.MFA.Enabled
}

func (e *Engine) stepUpPolicy() attemptPolicy {
	return attemptPolicy{event: AuditEventMFAVerification, accept: e.acceptStepUp}
}

// acceptStepUp requires a match whose confidence strictly exceeds the
// step-up floor.
func (e *Engine) acceptStepUp(v *Verdict) error {
	if !v.Success {
		return ErrNoMatch
	}
	if v.Confidence <= e.config.MFA.ConfidenceThreshold {
		return fmt.Errorf("%w: %.2f <= %.2f", ErrStepUpRejected, v.Confidence, e.config.MFA.ConfidenceThreshold)
	}
	return nil
}

// BeginStepUp opens a step-up challenge for identity, bound to the primary
// session sessionRef. With the gate disabled it returns a challenge with
// Required=false that is not persisted.
func (e *Engine) BeginStepUp(ctx context.Context, sessionRef, identity string) (*StepUpChallenge, error) {
	if !e.StepUpEnabled() {
		return &StepUpChallenge{Identity: identity, SessionRef: sessionRef}, nil
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if sessionRef == "" {
		return nil, fmt.Errorf("%w: session reference is required", ErrInvalidInput)
	}
	if _, err := e.enabledProfile(ctx, identity); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	expiresAt := e.now().Add(e.config.MFA.ChallengeTTL)
	record := &stores.StepUpChallenge{
		Identity:   identity,
		SessionRef: sessionRef,
		ExpiresAt:  expiresAt.Unix(),
	}
	if err := e.challenges.Save(ctx, id, record, e.config.MFA.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStepUpUnavailable, err)
	}

	e.metricInc(MetricStepUpRequired)
	e.emitAudit(ctx, AuditEventStepUpRequired, true, identity, 0, nil, func() map[string]string {
		return map[string]string{"challenge_id": id}
	})

	return &StepUpChallenge{
		ID:         id,
		Identity:   identity,
		SessionRef: sessionRef,
		Required:   true,
		ExpiresAt:  time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// VerifyStepUp runs face authentication for the challenge's identity. The
// challenge is marked verified only when the face matches and confidence
// exceeds MFA.ConfidenceThreshold; a signed proof is then returned.
//
// There is no per-challenge retry budget. Failures count toward the
// identity's lockout like any other attempt.
func (e *Engine) VerifyStepUp(ctx context.Context, challengeID string, image []byte, frames [][]byte) (*StepUpResult, error) {
	if !e.StepUpEnabled() {
		return nil, ErrStepUpDisabled
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	policy := e.stepUpPolicy()

	challenge, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		e.metricInc(MetricStepUpFailure)
		e.emitAudit(ctx, policy.event, false, "", 0, err, func() map[string]string {
			return map[string]string{"challenge_id": challengeID}
		})
		return nil, err
	}
	if challenge.Verified {
		err := fmt.Errorf("%w: already verified", ErrStepUpChallengeInvalid)
		e.metricInc(MetricStepUpFailure)
		e.emitAudit(ctx, policy.event, false, challenge.Identity, 0, err, nil)
		return nil, err
	}

	v, err := e.authenticate(ctx, AuthenticateRequest{
		Identity: challenge.Identity,
		Image:    image,
		Frames:   frames,
	}, policy)
	if err != nil {
		e.metricInc(MetricStepUpFailure)
		if v != nil {
			return &StepUpResult{ChallengeID: challengeID, Confidence: v.Confidence}, err
		}
		return nil, err
	}
	if err := e.acceptStepUp(v); err != nil {
		e.metricInc(MetricStepUpFailure)
		return &StepUpResult{ChallengeID: challengeID, Confidence: v.Confidence}, err
	}

	bg := context.WithoutCancel(ctx)
	changed, err := e.challenges.MarkVerified(bg, challengeID)
	if err != nil {
		e.metricInc(MetricStepUpFailure)
		return nil, challengeError(err)
	}
	if !changed {
		e.metricInc(MetricStepUpFailure)
		return nil, fmt.Errorf("%w: already verified", ErrStepUpChallengeInvalid)
	}

	proof, err := e.proofs.Issue(challenge.Identity, challenge.SessionRef, challengeID, v.Confidence)
	if err != nil {
		e.metricInc(MetricStepUpFailure)
		return nil, fmt.Errorf("%w: sign proof: %v", ErrStepUpUnavailable, err)
	}

	e.metricInc(MetricStepUpSuccess)
	return &StepUpResult{
		ChallengeID: challengeID,
		Verified:    true,
		Confidence:  v.Confidence,
		Proof:       proof,
		ProofExpiry: e.now().Add(e.config.MFA.ProofTTL).UTC(),
	}, nil
}

// StepUpSatisfied reports whether the primary flow may proceed. It is
// always true while the gate is disabled.
func (e *Engine) StepUpSatisfied(ctx context.Context, challengeID string) (bool, error) {
	if !e.StepUpEnabled() {
		return true, nil
	}
	challenge, err := e.loadChallenge(ctx, challengeID)
	if err != nil {
		return false, err
	}
	return challenge.Verified, nil
}

// VerifyStepUpProof validates a proof issued by VerifyStepUp. The proof is
// only honoured while its challenge is alive and verified, so EndStepUp
// revokes it.
func (e *Engine) VerifyStepUpProof(ctx context.Context, token string) (*StepUpProof, error) {
	if !e.StepUpEnabled() {
		return nil, ErrStepUpDisabled
	}
	if e.proofs == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.proofs.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStepUpProofInvalid, err)
	}

	challenge, err := e.loadChallenge(ctx, claims.ChallengeID)
	if err != nil {
		if errors.Is(err, ErrStepUpUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStepUpProofInvalid, err)
	}
	if !challenge.Verified {
		return nil, ErrStepUpNotVerified
	}
	if challenge.Identity != claims.Identity() || challenge.SessionRef != claims.SessionRef {
		return nil, fmt.Errorf("%w: proof does not match challenge", ErrStepUpProofInvalid)
	}

	out := &StepUpProof{
		Identity:    claims.Identity(),
		SessionRef:  claims.SessionRef,
		ChallengeID: claims.ChallengeID,
		Confidence:  claims.Confidence,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return out, nil
}

// EndStepUp destroys the challenge once the primary session concludes.
// Ending an unknown challenge is not an error.
func (e *Engine) EndStepUp(ctx context.Context, challengeID string) error {
	if !e.StepUpEnabled() || challengeID == "" {
		return nil
	}
	if e.challenges == nil {
		return ErrEngineNotReady
	}
	if _, err := e.challenges.Delete(ctx, challengeID); err != nil {
		return challengeError(err)
	}
	return nil
}

func (e *Engine) loadChallenge(ctx context.Context, challengeID string) (*stores.StepUpChallenge, error) {
	if challengeID == "" {
		return nil, ErrStepUpChallengeInvalid
	}
	challenge, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		return nil, challengeError(err)
	}
	return challenge, nil
}

func challengeError(err error) error {
	switch {
	case errors.Is(err, stores.ErrStepUpChallengeNotFound):
		return ErrStepUpChallengeInvalid
	case errors.Is(err, stores.ErrStepUpChallengeExpired):
		return ErrStepUpChallengeExpired
	default:
		return fmt.Errorf("%w: %v", ErrStepUpUnavailable, err)
	}
}
