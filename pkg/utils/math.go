package utils

import "gonum.org/v1/gonum/floats"

// NormalizeL2 scales x in place to unit L2 norm and returns the original norm.
// A zero vector is left unchanged.
func NormalizeL2(x []float64) float64 {
	norm := floats.Norm(x, 2)
	if norm == 0 {
		return 0
	}
	floats.Scale(1/norm, x)
	return norm
}
