// Package keyword provides a full-text catalog of ingested reports.
package keyword

import (
	"context"

	"github.com/hyperjump/reportqa/internal/models"
)

// SearchOptions optional parameters for catalog search. Nil means use defaults.
type SearchOptions struct {
	// NameBoost multiplies the score contribution from matches in the report name.
	// Use 1.0 (or 0) for no boost.
	NameBoost float64
	// Fuzziness enables typo-tolerant matching with the given edit distance (1 or 2).
	// Zero disables fuzzy matching.
	Fuzziness int
}

// ReportIndex indexes report names and text for keyword lookup.
type ReportIndex interface {
	Index(ctx context.Context, report *models.Report, text string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// Result is a single catalog hit.
type Result struct {
	ReportID string  `json:"report_id"`
	Score    float64 `json:"score"`
}
