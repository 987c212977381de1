package reembed

import "github.com/viant/vec/search"

// NormalizeVector returns v scaled to unit length as a new slice. A zero
// vector yields a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	if len(v) == 0 {
		return result
	}

	magnitude := search.Float32s(v).Magnitude()
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
