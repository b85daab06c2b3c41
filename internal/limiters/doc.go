// Package limiters provides the attempt tracker and request throttles used
// by the face authentication engine.
//
// # Limiters
//
//   - [Tracker] records attempts and derives sliding-window lockout from
//     the failure timeline of a store.AttemptStore.
//   - [RequestLimiter] is a fixed-window INCR/EXPIRE budget used to cap
//     enrollment requests per identity and provider-bound requests per
//     client origin.
//
// A nil RequestLimiter allows every request.
//
// # Architecture boundaries
//
// Limiters count and compare. The engine decides what a lockout or a
// throttle means for the caller and what gets audited.
//
// # What this package must NOT do
//
//   - Import goFaceAuth or any sibling internal package.
//   - Persist lock state; it is always derived at query time.
package limiters
