package vector

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, floats.Dot(a, b)/(na*nb)))
}

// EuclideanDistance returns the L2 distance between a and b. Lengths must match.
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
