package goFaceAuth

import "errors"

var (
	// ErrFeatureDisabled is returned by every enrollment and authentication
	// call while FaceAuth.Enabled is false.
	ErrFeatureDisabled = errors.New("face authentication disabled")
	// ErrInvalidInput reports a missing identity or an empty or undersized
	// image. No provider call was made.
	ErrInvalidInput = errors.New("invalid biometric input")
	// ErrProviderUnavailable reports a provider timeout, transport failure or
	// malformed provider answer. It is never a rejection; callers may retry.
	ErrProviderUnavailable = errors.New("recognition provider unavailable")
	// ErrProfileNotFound means the identity never enrolled.
	ErrProfileNotFound = errors.New("biometric profile not found")
	// ErrFaceAuthNotEnabled means the identity's profile is disabled.
	ErrFaceAuthNotEnabled = errors.New("face authentication not enabled for identity")
	// ErrLocked means the identity reached the failure limit inside the
	// lockout window.
	ErrLocked = errors.New("identity locked")
	ErrInsufficientFrames = errors.New("insufficient liveness frames")
	ErrNotLive            = errors.New("liveness check failed")
	ErrNoMatch            = errors.New("face does not match")
	// ErrDimensionMismatch means the presented embedding and the stored one
	// differ in length, usually after a provider model change.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrRateLimited       = errors.New("biometric request rate limited")
	ErrStoreUnavailable  = errors.New("biometric store unavailable")

	ErrStepUpDisabled         = errors.New("face step-up disabled")
	ErrStepUpChallengeInvalid = errors.New("step-up challenge invalid")
	ErrStepUpChallengeExpired = errors.New("step-up challenge expired")
	ErrStepUpNotVerified      = errors.New("step-up challenge not verified")
	// ErrStepUpRejected means the face matched but confidence did not exceed
	// the step-up threshold.
	ErrStepUpRejected     = errors.New("step-up confidence too low")
	ErrStepUpProofInvalid = errors.New("step-up proof invalid")
	ErrStepUpUnavailable  = errors.New("step-up backend unavailable")

	ErrAuditLogDisabled = errors.New("audit history disabled")
	ErrEngineNotReady   = errors.New("engine not initialized")
)
