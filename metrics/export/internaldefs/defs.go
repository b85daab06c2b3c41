package internaldefs

import (
	goFaceAuth "github.com/MrEthical07/goFaceAuth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goFaceAuth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goFaceAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goFaceAuth.MetricEnrollSuccess, Name: "faceauth_enroll_success_total", Help: "Successful enrollments."},
	{ID: goFaceAuth.MetricEnrollFailure, Name: "faceauth_enroll_failure_total", Help: "Failed or rejected enrollments."},
	{ID: goFaceAuth.MetricAuthSuccess, Name: "faceauth_auth_success_total", Help: "Authentication attempts that matched."},
	{ID: goFaceAuth.MetricAuthFailure, Name: "faceauth_auth_failure_total", Help: "Authentication attempts that did not succeed, including aborted ones."},
	{ID: goFaceAuth.MetricAuthNoMatch, Name: "faceauth_auth_no_match_total", Help: "Authentication attempts decided as a non-match."},
	{ID: goFaceAuth.MetricAuthNotLive, Name: "faceauth_auth_not_live_total", Help: "Authentication attempts decided as not live."},
	{ID: goFaceAuth.MetricAuthLocked, Name: "faceauth_auth_locked_total", Help: "Authentication attempts refused by lockout."},
	{ID: goFaceAuth.MetricProviderUnavailable, Name: "faceauth_provider_unavailable_total", Help: "Attempts aborted because the recognition provider was unavailable."},
	{ID: goFaceAuth.MetricLivenessLive, Name: "faceauth_liveness_live_total", Help: "Liveness sessions that concluded live."},
	{ID: goFaceAuth.MetricLivenessNotLive, Name: "faceauth_liveness_not_live_total", Help: "Liveness sessions that concluded not live."},
	{ID: goFaceAuth.MetricLivenessAborted, Name: "faceauth_liveness_aborted_total", Help: "Liveness sessions aborted before a decision."},
	{ID: goFaceAuth.MetricStepUpRequired, Name: "faceauth_step_up_required_total", Help: "Step-up challenges opened."},
	{ID: goFaceAuth.MetricStepUpSuccess, Name: "faceauth_step_up_success_total", Help: "Step-up challenges verified."},
	{ID: goFaceAuth.MetricStepUpFailure, Name: "faceauth_step_up_failure_total", Help: "Failed step-up verifications."},
	{ID: goFaceAuth.MetricLockoutReset, Name: "faceauth_lockout_reset_total", Help: "Administrative lockout resets."},
	{ID: goFaceAuth.MetricProfileDisabled, Name: "faceauth_profile_disabled_total", Help: "Profiles disabled."},
	{ID: goFaceAuth.MetricRateLimitHit, Name: "faceauth_rate_limit_hit_total", Help: "Requests denied by a throttle."},
}

var HistogramDefs = []HistogramDef{
	{ID: goFaceAuth.MetricAuthenticateLatency, Name: "faceauth_authenticate_latency_seconds", Help: "Authentication pipeline latency including provider calls."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's
// latency buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument name suffixes
// for exporters without native bucket labels.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

const AuditDroppedName = "faceauth_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit records due to dispatcher backpressure."

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
