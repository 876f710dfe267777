// Package indexer provides report chunking and the ingestion pipeline.
package indexer

import (
	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/models"
)

// Chunker splits text into overlapping character windows.
type Chunker struct {
	window  int
	overlap int
}

// NewChunker creates a chunker with the given window and overlap, both in characters.
// The window must be positive and larger than the overlap.
func NewChunker(window, overlap int) (*Chunker, error) {
	if window <= 0 || overlap < 0 || window <= overlap {
		return nil, errs.Newf(errs.KindConfiguration, "chunker.new",
			"window %d must be positive and greater than overlap %d", window, overlap)
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

// Split returns the windows of text in order. Each window starts window-overlap
// characters after the previous one; a window shorter than the full size is always last.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	var out []string
	step := c.window - c.overlap
	for offset := 0; offset < len(runes); offset += step {
		end := offset + c.window
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[offset:end]))
		if end-offset < c.window {
			break
		}
	}
	return out
}

// Chunk splits text into chunks of reportID indexed from 0.
func (c *Chunker) Chunk(reportID, text string) []*models.Chunk {
	parts := c.Split(text)
	chunks := make([]*models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &models.Chunk{ReportID: reportID, Index: i, Text: p}
	}
	return chunks
}
