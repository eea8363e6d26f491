package textvec

import "fmt"

// Vector is a sparse feature vector of fixed dimension.
// Indices are strictly increasing and always < Dim.
type Vector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// NNZ returns the number of stored (non-zero) entries.
func (v Vector) NNZ() int { return len(v.Indices) }

// Dense expands the vector into a slice of length Dim.
func (v Vector) Dense() []float64 {
	out := make([]float64, v.Dim)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}

// DenseFloat32 expands the vector into dst, which must have length Dim.
func (v Vector) DenseFloat32(dst []float32) error {
	if len(dst) != v.Dim {
		return fmt.Errorf("dense buffer has length %d, vector dim is %d", len(dst), v.Dim)
	}
	for i := range dst {
		dst[i] = 0
	}
	for i, idx := range v.Indices {
		dst[idx] = float32(v.Values[i])
	}
	return nil
}

// Dot returns the inner product with a dense weight vector of the same dimension.
func (v Vector) Dot(w []float64) (float64, error) {
	if len(w) != v.Dim {
		return 0, fmt.Errorf("weight length %d does not match vector dim %d", len(w), v.Dim)
	}
	var sum float64
	for i, idx := range v.Indices {
		sum += v.Values[i] * w[idx]
	}
	return sum, nil
}
