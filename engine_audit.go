package goFaceAuth

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
)

const (
	AuditEventEnrollment      = "enrollment"
	AuditEventAuthentication  = "authentication"
	AuditEventMFAVerification = "mfa_verification"
	AuditEventStepUpRequired  = "step_up_required"
	AuditEventProfileDisabled = "profile_disabled"
	AuditEventLockoutReset    = "lockout_reset"
)

// AuditErrorCode is the stable reason recorded for a rejected attempt.
type AuditErrorCode string

const (
	AuditReasonInvalidInput      AuditErrorCode = "invalid_input"
	AuditReasonProfileNotFound   AuditErrorCode = "profile_not_found"
	AuditReasonNotEnabled        AuditErrorCode = "face_auth_not_enabled"
	AuditReasonLocked            AuditErrorCode = "locked"
	AuditReasonInsufficientFrame AuditErrorCode = "insufficient_frames"
	AuditReasonNotLive           AuditErrorCode = "not_live"
	AuditReasonNoMatch           AuditErrorCode = "no_match"
	AuditReasonDimension         AuditErrorCode = "dimension_mismatch"
	AuditReasonLowConfidence     AuditErrorCode = "low_confidence"
	AuditReasonRateLimited       AuditErrorCode = "rate_limited"
	AuditReasonChallengeInvalid  AuditErrorCode = "challenge_invalid"
	AuditReasonUnavailable       AuditErrorCode = "backend_unavailable"
	AuditReasonCanceled          AuditErrorCode = "canceled"
	AuditReasonInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	confidence float64,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	record := AuditRecord{
		ID:         uuid.NewString(),
		Timestamp:  e.now().UTC(),
		EventType:  eventType,
		Identity:   identity,
		Origin:     clientIPFromContext(ctx),
		Success:    success,
		Confidence: confidence,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		record.Reason = string(code)
	}

	// Callers usually pass a context detached from cancellation, so a
	// blocking emit gets its own bound.
	if !e.config.Audit.DropIfFull {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Audit.EmitTimeout)
		defer cancel()
	}
	e.audit.Emit(ctx, record)
}

func countersMetadata(c AttemptCounters) map[string]string {
	return map[string]string{
		"success_count": strconv.FormatUint(c.Success, 10),
		"failed_count":  strconv.FormatUint(c.Failed, 10),
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return AuditReasonInvalidInput
	case errors.Is(err, ErrProfileNotFound):
		return AuditReasonProfileNotFound
	case errors.Is(err, ErrFaceAuthNotEnabled):
		return AuditReasonNotEnabled
	case errors.Is(err, ErrLocked):
		return AuditReasonLocked
	case errors.Is(err, ErrInsufficientFrames):
		return AuditReasonInsufficientFrame
	case errors.Is(err, ErrNotLive):
		return AuditReasonNotLive
	case errors.Is(err, ErrNoMatch):
		return AuditReasonNoMatch
	case errors.Is(err, ErrDimensionMismatch):
		return AuditReasonDimension
	case errors.Is(err, ErrStepUpRejected):
		return AuditReasonLowConfidence
	case errors.Is(err, ErrRateLimited):
		return AuditReasonRateLimited
	case errors.Is(err, ErrStepUpChallengeInvalid),
		errors.Is(err, ErrStepUpChallengeExpired),
		errors.Is(err, ErrStepUpNotVerified),
		errors.Is(err, ErrStepUpProofInvalid):
		return AuditReasonChallengeInvalid
	case errors.Is(err, context.Canceled):
		// Caller cancellation surfaces as provider unavailability but is
		// recorded as what it was.
		return AuditReasonCanceled
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrStepUpUnavailable):
		return AuditReasonUnavailable
	default:
		return AuditReasonInternal
	}
}
