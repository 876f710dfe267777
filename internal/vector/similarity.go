// Package vector provides cosine ranking of chunk embeddings against a query.
package vector

import "math"

// InnerProduct returns the dot product over the common prefix of a and b.
func InnerProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns dot(a,b)/(|a||b|). When either norm is zero the raw dot product
// is returned. Vectors of different length are compared over their common prefix.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	a, b = a[:n], b[:n]
	dot := InnerProduct(a, b)
	denom := L2Norm(a) * L2Norm(b)
	if denom == 0 {
		return dot
	}
	return dot / denom
}
