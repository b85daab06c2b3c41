// Package provider is the boundary to the external face recognition provider.
//
// # Components
//
//   - [Client]: capability interface (embedding, liveness, blink, movement).
//   - [HTTPClient]: JSON-over-HTTP transport for the provider service.
//   - [Guard]: wraps any Client with payload validation, per-call time bounds,
//     and error translation to [ErrUnavailable].
//
// # Architecture boundaries
//
// This package reports what the provider said or that it could not be reached.
// It does NOT compare embeddings or aggregate liveness signals; that belongs to
// the match and liveness packages.
//
// # What this package must NOT do
//
//   - Turn a provider failure into a negative biometric answer.
//   - Call the provider with an empty or undersized payload.
//   - Import goFaceAuth or any sibling package.
package provider
