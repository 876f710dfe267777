// Package models defines core data structures for reports, chunks, figures, and chart payloads.
package models

import "time"

// Document is an uploaded file for the duration of one ingestion or query call.
type Document struct {
	Name        string
	ContentType string
	Content     []byte
}

// Report is the persisted record of an ingested document.
type Report struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	PageCount   int       `json:"page_count" db:"page_count"`
	ChunkCount  int       `json:"chunk_count" db:"chunk_count"`
	SourceURL   string    `json:"source_url,omitempty" db:"source_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk is an overlapping slice of a report's text. Vector is nil when absent.
type Chunk struct {
	ReportID string    `json:"report_id" db:"report_id"`
	Index    int       `json:"chunk_index" db:"chunk_index"`
	Text     string    `json:"content" db:"content"`
	Vector   []float32 `json:"-" db:"embedding"`
}

// ScoredChunk is one entry of a retrieval context.
type ScoredChunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// RetrievalContext is ordered by descending score and truncated to top-N.
type RetrievalContext []ScoredChunk

// ChunkTexts returns the text of each chunk in order.
func ChunkTexts(chunks []*Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		if c != nil {
			out[i] = c.Text
		}
	}
	return out
}
