package modelhost

import "math"

// sqrtEps returns sqrt(x + 1e-9), the epsilon spec.md §4.9 mandates to avoid
// a division-by-zero norm on an all-zero embedding.
func sqrtEps(x float64) float64 {
	return math.Sqrt(x + 1e-9)
}

// sigmoid is the logistic function the reranker applies to its single raw
// relevance logit to produce a score in (0, 1) (spec.md §4.2 reranker
// specialization). A one-line math.Exp call does not warrant pulling in a
// numerics dependency for itself.
func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}
