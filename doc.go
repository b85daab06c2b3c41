// Package goFaceAuth grants or denies identity claims using a facial
// biometric, either as a primary login or as a step-up factor after
// password login.
//
// An [Engine] is assembled with [New] and [Builder.Build]. Its methods are
// safe to call from multiple goroutines.
//
// # Architecture boundaries
//
// The root package owns the orchestration: enrollment, the authentication
// pipeline, the step-up gate and audit dispatch. Face embeddings and
// liveness signals come from an external recognition provider (package
// provider); distance math lives in package match and the multi-frame
// liveness state machine in package liveness. Persistence is behind the
// interfaces in package store with Redis implementations under internal/.
//
// # What this package must NOT do
//
//   - Issue primary sessions or tokens. Step-up proofs only attest a face
//     verification for a session the caller already owns.
//   - Persist raw images or frames.
//   - Treat a provider failure as a rejection: unavailability is reported
//     as [ErrProviderUnavailable] and never counts as a failed attempt.
package goFaceAuth
