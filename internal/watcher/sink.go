package watcher

import (
	"context"

	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/indexer"
	"go.uber.org/zap"
)

// Sink receives settled inbox files.
type Sink interface {
	FileChanged(ctx context.Context, path string)
	FileRemoved(ctx context.Context, path string)
}

// IngestSink ingests changed files as reports and deletes the report of removed files.
type IngestSink struct {
	indexer    *indexer.Indexer
	extensions []string
	logger     *zap.Logger
}

// NewIngestSink creates a sink over idx.
func NewIngestSink(idx *indexer.Indexer, extensions []string, logger *zap.Logger) *IngestSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestSink{indexer: idx, extensions: extensions, logger: logger}
}

func (s *IngestSink) FileChanged(ctx context.Context, path string) {
	res, err := s.indexer.IngestFile(ctx, path, s.extensions, false)
	switch {
	case errs.KindOf(err) == errs.KindNoTextContent:
		s.logger.Warn("inbox file has no text", zap.String("path", path))
	case err != nil:
		s.logger.Error("inbox ingest failed", zap.String("path", path), zap.Error(err),
			zap.Bool("retryable", errs.IsRetryable(err)))
	case res.Skipped:
		s.logger.Debug("inbox file unchanged", zap.String("path", path))
	default:
		s.logger.Info("inbox file ingested", zap.String("path", path),
			zap.String("report_id", res.ReportID), zap.Int("chunks", res.Chunks), zap.Int("figures", res.Figures))
	}
}

func (s *IngestSink) FileRemoved(ctx context.Context, path string) {
	if err := s.indexer.RemoveFile(ctx, path); err != nil {
		s.logger.Error("inbox remove failed", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Info("inbox file removed", zap.String("path", path))
}
