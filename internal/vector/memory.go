package vector

import (
	"sync"

	"github.com/hyperjump/reportqa/internal/models"
)

// MemoryIndex holds one report's chunks and answers queries by linear scan.
// Chunks without a vector are kept but always score 0.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks []*models.Chunk
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an index over the given chunks.
func NewMemoryIndex(chunks ...*models.Chunk) *MemoryIndex {
	m := &MemoryIndex{}
	m.Add(chunks...)
	return m
}

// Add appends chunks; nil entries are ignored.
func (m *MemoryIndex) Add(chunks ...*models.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if c != nil {
			m.chunks = append(m.chunks, c)
		}
	}
}

// Search returns the k most similar chunks, highest score first.
func (m *MemoryIndex) Search(query []float32, k int) models.RetrievalContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vectors := make([][]float32, len(m.chunks))
	for i, c := range m.chunks {
		vectors[i] = c.Vector
	}
	top := TopN(Rank(query, vectors), k)
	out := make(models.RetrievalContext, len(top))
	for i, s := range top {
		c := m.chunks[s.Index]
		out[i] = models.ScoredChunk{ChunkIndex: c.Index, Score: s.Score, Text: c.Text}
	}
	return out
}

// Size returns the number of chunks held.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}
