// Package liveness aggregates an ordered frame sequence into a live or
// not-live verdict.
//
// A Session collects frames, then drives up to three provider calls during
// Evaluate: the primary liveness signal over every frame, a blink signal
// over the first three frames and a movement signal over the first few
// frames. Only the primary call can abort a session; secondary failures
// count as an absent signal.
//
// # Architecture boundaries
//
// Sessions are ephemeral and never persisted. They hold frames in memory
// for the duration of a single authentication attempt and are discarded
// once a terminal state is reached.
//
// # What this package must NOT do
//
//   - Pad a short frame sequence to reach the minimum.
//   - Reuse a session after a terminal state.
//   - Record attempts or audit events.
package liveness
