package core

import "github.com/viant/vec/search"

// DistanceFunc computes the distance between two vectors of equal length.
type DistanceFunc func(a, b []float32) float32

// Distance resolves the distance implementation for m, or nil when m is not
// a known metric.
func (m Metric) Distance() DistanceFunc {
	switch m {
	case MetricCosine:
		return CosineDistance
	case MetricEuclidean:
		return EuclideanDistance
	default:
		return nil
	}
}

// CosineDistance returns 1 - cosine similarity. Zero vectors have distance 1.
func CosineDistance(a, b []float32) float32 {
	va := search.Float32s(a)
	if va.Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 1
	}
	return va.CosineDistance(b)
}

// EuclideanDistance returns the L2 distance.
func EuclideanDistance(a, b []float32) float32 {
	return search.Float32s(a).EuclideanDistance(b)
}
