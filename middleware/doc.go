// Package middleware adapts the face step-up gate to net/http.
//
//   - [RequireStepUp] admits only requests carrying a valid step-up proof
//     and injects the verified proof into the request context.
//   - [ClientIP] attaches the peer address so the engine can audit the
//     origin and apply per-origin throttling.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every decision
// is delegated to Engine.VerifyStepUpProof.
//
// # What this package must NOT do
//
//   - Parse or sign proofs directly.
//   - Access Redis.
//   - Run face authentication. Handlers call Engine.VerifyStepUp themselves.
package middleware
