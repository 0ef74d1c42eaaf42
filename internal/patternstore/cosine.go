package patternstore

import "math"

// CosineSimilarity returns the cosine of the angle between a and b mapped to
// [0, 1]. Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Negative cosine means unrelated for retrieval purposes.
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
