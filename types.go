package goFaceAuth

import (
	"time"

	"github.com/MrEthical07/goFaceAuth/liveness"
	"github.com/MrEthical07/goFaceAuth/store"
)

// BiometricProfile is the enrolled face of one identity.
type BiometricProfile = store.Profile

// AttemptCounters are the monotonic per-identity attempt totals.
type AttemptCounters = store.Counters

// ProfileStore and AttemptStore let callers back the engine with their own
// persistence (see store/postgres). Redis is used when none is supplied.
type (
	ProfileStore = store.ProfileStore
	AttemptStore = store.AttemptStore
)

// AuthenticateRequest is one face authentication attempt. Frames are the
// ordered liveness capture; they are ignored when liveness does not apply.
type AuthenticateRequest struct {
	Identity        string
	Image           []byte
	Frames          [][]byte
	RequireLiveness bool
}

// Verdict is the outcome of an attempt that reached a decision. Confidence
// is always reported, including on rejection.
type Verdict struct {
	Identity   string
	Success    bool
	Confidence float64
	Distance   float64
	Reason     AuditErrorCode
	Liveness   *liveness.Result
	Counters   AttemptCounters
}

// LoginResult is the caller-facing shape of a face login.
type LoginResult struct {
	Eligible   bool
	Confidence float64
}

// StepUpChallenge is a step-up request bound to one primary session. A
// challenge with Required=false was not persisted and needs no
// verification.
type StepUpChallenge struct {
	ID         string
	Identity   string
	SessionRef string
	Required   bool
	Verified   bool
	ExpiresAt  time.Time
}

// StepUpResult is returned by a successful step-up verification. Proof is a
// short-lived signed token the primary flow presents to
// middleware.RequireStepUp.
type StepUpResult struct {
	ChallengeID string
	Verified    bool
	Confidence  float64
	Proof       string
	ProofExpiry time.Time
}

// StepUpProof is a verified step-up proof.
type StepUpProof struct {
	Identity    string
	SessionRef  string
	ChallengeID string
	Confidence  float64
	ExpiresAt   time.Time
}
