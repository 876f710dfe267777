package vector

import "github.com/hyperjump/reportqa/internal/models"

// Index ranks a report's chunks against a query vector.
type Index interface {
	Add(chunks ...*models.Chunk)
	Search(query []float32, k int) models.RetrievalContext
	Size() int
}
