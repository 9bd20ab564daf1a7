package memory

import "math"

// Relevance turns an engine distance into a score in [0, 1].
//
// Engines report cosine distance (1 - cosine similarity), so identical
// vectors score 1 and anything at or beyond orthogonal scores 0. The mapping
// is monotonically non-increasing in the distance.
func Relevance(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}

	return math.Max(0, math.Min(1, 1-distance))
}
