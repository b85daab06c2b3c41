// Package match turns two face embeddings into a match verdict.
//
// Compare is pure: it performs no I/O and holds no state, so it is safe to
// call from any goroutine.
package match

import (
	"errors"
	"math"
)

// DefaultThreshold is the Euclidean distance below which two embeddings are
// considered the same face.
const DefaultThreshold = 0.6

var (
	// ErrDimensionMismatch is returned when the two embeddings have
	// different lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyEmbedding is returned when either embedding has no components.
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// Result is the outcome of one comparison.
type Result struct {
	Match      bool
	Distance   float64
	Confidence float64
}

// Compare computes the Euclidean distance between stored and presented and
// reports a match when the distance is strictly below threshold. A
// non-positive threshold selects DefaultThreshold.
func Compare(stored, presented []float64, threshold float64) (Result, error) {
	if len(stored) == 0 || len(presented) == 0 {
		return Result{}, ErrEmptyEmbedding
	}
	if len(stored) != len(presented) {
		return Result{}, ErrDimensionMismatch
	}
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}

	d := Distance(stored, presented)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return Result{Distance: d}, nil
	}
	return Result{
		Match:      d < threshold,
		Distance:   d,
		Confidence: Confidence(d),
	}, nil
}

// Distance returns the L2 distance between a and b over their common
// prefix. Callers are expected to have checked the lengths.
func Distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Confidence maps a distance to a percentage in [0, 100].
func Confidence(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	c := (1 - distance) * 100
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
