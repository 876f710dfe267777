package vector

import "sort"

// Scored is the similarity of one candidate vector to a query.
type Scored struct {
	Index int
	Score float64
}

// Rank scores every vector against query and returns them by descending score.
// Ties keep input order. A nil vector scores 0.
func Rank(query []float32, vectors [][]float32) []Scored {
	out := make([]Scored, len(vectors))
	for i, v := range vectors {
		out[i] = Scored{Index: i, Score: Cosine(query, v)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// TopN returns the first n entries of scored (all of them when n exceeds the length).
func TopN(scored []Scored, n int) []Scored {
	if n < 0 {
		n = 0
	}
	if n > len(scored) {
		n = len(scored)
	}
	return scored[:n]
}
