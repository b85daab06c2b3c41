// Package stores provides the Redis-backed persistence used by the face
// authentication engine: biometric profiles, attempt counters with their
// failure timeline, step-up challenges and per-identity audit streams.
//
// # Design
//
// Profiles and challenges are versioned, binary-encoded records stored
// under a single key each. Replacing a profile is one SET. Flag changes
// use WATCH/MULTI optimistic transactions with a bounded retry on
// contention. Attempt counters and the failure timeline are updated in a
// single MULTI/EXEC so concurrent attempts for the same identity never
// lose an increment.
//
// Key layout, with the configurable prefix (default "fa"):
//
//	fa:p:{identity}  profile record
//	fa:c:{identity}  counters hash (s, f, t)
//	fa:w:{identity}  failure timeline, sorted set scored by Unix ms
//	fa:m:{id}        step-up challenge record
//	fa:a:{identity}  audit stream
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control only. Lockout
// policy lives in internal/limiters and verdicts are made by the engine.
//
// # What this package must NOT do
//
//   - Import goFaceAuth or any sibling internal package.
//   - Merge a new profile into an old one.
//   - Decide whether an identity is locked.
package stores
