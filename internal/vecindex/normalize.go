package vecindex

import "math"

// Normalize returns a copy of v scaled to unit L2 norm. The zero vector is
// returned unchanged rather than dividing by zero.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// L2Norm returns the L2 norm of v, used by tests to verify the
// unit-normalization invariant (spec invariant 6).
func L2Norm(v []float32) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	return math.Sqrt(sumSq)
}
