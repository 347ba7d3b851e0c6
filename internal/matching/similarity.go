package matching

import (
	"errors"
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/facematch/internal/domain"
)

// Epsilon is the smallest embedding magnitude accepted as a valid vector.
const Epsilon = 1e-6

// DefaultMargin shifts the 50% anchor of MatchPercent below the threshold.
const DefaultMargin = 0.1

var ErrDegenerateEmbedding = errors.New("degenerate embedding")

// Score returns the cosine similarity of a and b clamped to [-1, 1].
func Score(a, b domain.Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateEmbedding)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch %d != %d", ErrDegenerateEmbedding, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		if !finite(a[i]) || !finite(b[i]) {
			return 0, fmt.Errorf("%w: non-finite component at %d", ErrDegenerateEmbedding, i)
		}
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA < Epsilon || normB < Epsilon {
		return 0, fmt.Errorf("%w: magnitude below %g", ErrDegenerateEmbedding, Epsilon)
	}

	cos := dot / (normA * normB)
	if !finite(cos) {
		return 0, fmt.Errorf("%w: similarity overflow", ErrDegenerateEmbedding)
	}

	return clamp(cos, -1, 1), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MatchPercent maps similarity to [0, 100] around the decision boundary.
// With anchor a = threshold - margin:
//
//	s >= a: 50 + 50*(s-a)/(1-a)
//	s <  a: 50*(s+1)/(a+1)
//
// So s=a reads 50, s=1 reads 100, s=-1 reads 0, and s=threshold reads a
// little above 50. The result is rounded to two decimals.
func MatchPercent(similarity, threshold, margin float64) float64 {
	if math.IsNaN(similarity) {
		return 0
	}
	s := clamp(similarity, -1, 1)
	anchor := clamp(threshold-margin, -1+Epsilon, 1-Epsilon)

	var p float64
	if s >= anchor {
		p = 50 + 50*(s-anchor)/(1-anchor)
	} else {
		p = 50 * (s + 1) / (anchor + 1)
	}

	return math.Round(clamp(p, 0, 100)*100) / 100
}

// Decide renders the match decision for an already computed similarity.
func Decide(similarity, threshold, margin float64) domain.SimilarityVerdict {
	s := similarity
	return domain.SimilarityVerdict{
		Similarity:   &s,
		Threshold:    threshold,
		IsMatch:      similarity >= threshold,
		MatchPercent: MatchPercent(similarity, threshold, margin),
	}
}

// ValidateThreshold rejects thresholds outside [0, 1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return domain.ErrInvalidThreshold
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
