// Package storage defines persistence for reports, their chunks, and their figures.
package storage

import (
	"context"

	"github.com/hyperjump/reportqa/internal/models"
)

// Storage defines report, chunk, and figure persistence operations.
type Storage interface {
	// Report operations
	UpsertReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, offset, limit int) ([]*models.Report, error)
	DeleteReport(ctx context.Context, id string) error

	// Chunks are replaced wholesale: delete, then insert in batches.
	ReplaceChunks(ctx context.Context, reportID string, chunks []*models.Chunk) error
	GetChunks(ctx context.Context, reportID string) ([]*models.Chunk, error)

	// Figures are replaced wholesale like chunks.
	ReplaceFigures(ctx context.Context, reportID string, figures []models.Figure) error
	GetFigures(ctx context.Context, reportID string) ([]models.Figure, error)

	// Stats
	CountReports(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
