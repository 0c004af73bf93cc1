// Package vector provides distance helpers shared by index build and query.
package vector

import "math"

// SquaredL2 returns the squared Euclidean distance between two vectors.
// The square root is never taken: ordering is identical and the raw squared
// value matches what flat L2 indexes conventionally report.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

// L2Norm returns the Euclidean norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}
