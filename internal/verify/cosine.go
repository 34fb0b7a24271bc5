// Package verify implements the facial-embedding matching and
// duplicate/fraud classification used during customer onboarding.
package verify

import "math"

// Default thresholds, tuned against the ArcFace embedding space.
// The duplicate search runs against the whole population and uses a
// stricter bar than same-session live-vs-document checks.
const (
	DefaultLiveThreshold      = 0.35
	DefaultDuplicateThreshold = 0.6
)

// CosineSimilarity computes the cosine similarity between two embedding vectors.
// Returns a value between -1 and 1, where 1 means identical.
// Mismatched lengths, empty vectors and zero-norm vectors all return 0:
// degenerate biometric evidence means "no match", never an error.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsMatch returns true if two embeddings have cosine similarity strictly
// above the threshold.
func IsMatch(a, b []float32, threshold float64) bool {
	return CosineSimilarity(a, b) > threshold
}
