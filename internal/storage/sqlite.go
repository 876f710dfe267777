package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/vector"
)

// Default row batch sizes for chunk and figure replacement.
const (
	DefaultChunkBatchSize  = 100
	DefaultFigureBatchSize = 50
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db              *sql.DB
	chunkBatchSize  int
	figureBatchSize int
	logger          *zap.Logger
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// WithBatchSizes sets how many chunk and figure rows go into one insert transaction.
func WithBatchSizes(chunks, figures int) Option {
	return func(s *SQLiteStorage) {
		if chunks > 0 {
			s.chunkBatchSize = chunks
		}
		if figures > 0 {
			s.figureBatchSize = figures
		}
	}
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{
		db:              db,
		chunkBatchSize:  DefaultChunkBatchSize,
		figureBatchSize: DefaultFigureBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		content_type TEXT,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		source_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);

	CREATE TABLE IF NOT EXISTS report_chunks (
		report_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		UNIQUE (report_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_report_chunks_report ON report_chunks(report_id, chunk_index);

	CREATE TABLE IF NOT EXISTS report_figures (
		report_id TEXT NOT NULL,
		page_number INTEGER,
		figure_number INTEGER,
		caption TEXT,
		figure_type TEXT NOT NULL DEFAULT 'other'
	);

	CREATE INDEX IF NOT EXISTS idx_report_figures_report ON report_figures(report_id, page_number);
	`
	_, err := db.Exec(schema)
	return err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errs.IsMissingTable(err) {
		return &errs.Error{Kind: errs.KindMissingTable, Op: op, Err: err}
	}
	return errs.Wrap(errs.KindPersistence, op, err)
}

// UpsertReport inserts a report or updates every field but created_at.
func (s *SQLiteStorage) UpsertReport(ctx context.Context, r *models.Report) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, name, content_type, size_bytes, page_count, chunk_count, source_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			content_type = excluded.content_type,
			size_bytes = excluded.size_bytes,
			page_count = excluded.page_count,
			chunk_count = excluded.chunk_count,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, r.ContentType, r.SizeBytes, r.PageCount, r.ChunkCount, r.SourceURL, r.CreatedAt, r.UpdatedAt,
	)
	return persistErr("storage.upsert_report", err)
}

const reportColumns = `id, name, content_type, size_bytes, page_count, chunk_count, source_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var r models.Report
	var contentType, sourceURL sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &contentType, &r.SizeBytes, &r.PageCount, &r.ChunkCount,
		&sourceURL, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ContentType = contentType.String
	r.SourceURL = sourceURL.String
	return &r, nil
}

// GetReport returns a report by ID.
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Newf(errs.KindNotFound, "storage.get_report", "report not found: %s", id)
	}
	if err != nil {
		return nil, persistErr("storage.get_report", err)
	}
	return r, nil
}

// ListReports returns reports newest first.
func (s *SQLiteStorage) ListReports(ctx context.Context, offset, limit int) ([]*models.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, persistErr("storage.list_reports", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, persistErr("storage.list_reports", err)
		}
		reports = append(reports, r)
	}
	return reports, persistErr("storage.list_reports", rows.Err())
}

// DeleteReport removes a report with its chunks and figures in one transaction.
func (s *SQLiteStorage) DeleteReport(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("storage.delete_report", err)
	}
	defer tx.Rollback()
	for _, q := range []string{
		`DELETE FROM report_chunks WHERE report_id = ?`,
		`DELETE FROM report_figures WHERE report_id = ?`,
		`DELETE FROM reports WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return persistErr("storage.delete_report", err)
		}
	}
	return persistErr("storage.delete_report", tx.Commit())
}

// ReplaceChunks deletes the report's chunks, then inserts the new ones in batches,
// each batch in its own transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, reportID string, chunks []*models.Chunk) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM report_chunks WHERE report_id = ?`, reportID); err != nil {
		return persistErr("storage.replace_chunks", err)
	}
	for start := 0; start < len(chunks); start += s.chunkBatchSize {
		end := start + s.chunkBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.insertChunks(ctx, reportID, chunks[start:end]); err != nil {
			return persistErr("storage.replace_chunks", err)
		}
		s.logger.Debug("chunk batch stored", zap.String("report_id", reportID), zap.Int("from", start), zap.Int("to", end))
	}
	return nil
}

func (s *SQLiteStorage) insertChunks(ctx context.Context, reportID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_chunks (report_id, chunk_index, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, reportID, c.Index, c.Text, vector.EncodeEmbedding(c.Vector)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunks returns the report's chunks ordered by index. A missing table yields no chunks.
func (s *SQLiteStorage) GetChunks(ctx context.Context, reportID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index, content, embedding FROM report_chunks WHERE report_id = ? ORDER BY chunk_index`,
		reportID,
	)
	if err != nil {
		if errs.IsMissingTable(err) {
			s.logger.Warn("chunk table missing", zap.Error(err))
			return nil, nil
		}
		return nil, persistErr("storage.get_chunks", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		c := &models.Chunk{ReportID: reportID}
		var blob []byte
		if err := rows.Scan(&c.Index, &c.Text, &blob); err != nil {
			return nil, persistErr("storage.get_chunks", err)
		}
		if c.Vector, err = vector.DecodeEmbedding(blob); err != nil {
			return nil, persistErr("storage.get_chunks", fmt.Errorf("chunk %d: %w", c.Index, err))
		}
		chunks = append(chunks, c)
	}
	return chunks, persistErr("storage.get_chunks", rows.Err())
}

// ReplaceFigures deletes the report's figures, then inserts the new ones in batches.
// A missing figures table is tolerated: nothing is stored and no error is returned.
func (s *SQLiteStorage) ReplaceFigures(ctx context.Context, reportID string, figures []models.Figure) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM report_figures WHERE report_id = ?`, reportID); err != nil {
		if errs.IsMissingTable(err) {
			s.logger.Warn("figure table missing; skipping figures", zap.String("report_id", reportID))
			return nil
		}
		return persistErr("storage.replace_figures", err)
	}
	for start := 0; start < len(figures); start += s.figureBatchSize {
		end := start + s.figureBatchSize
		if end > len(figures) {
			end = len(figures)
		}
		if err := s.insertFigures(ctx, reportID, figures[start:end]); err != nil {
			return persistErr("storage.replace_figures", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) insertFigures(ctx context.Context, reportID string, figures []models.Figure) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_figures (report_id, page_number, figure_number, caption, figure_type) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range figures {
		typ := f.Type
		if !typ.Valid() {
			typ = models.FigureOther
		}
		if _, err := stmt.ExecContext(ctx, reportID, f.Page, f.FigureNumber, f.Caption, string(typ)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetFigures returns the report's figures ordered by page. A missing table yields no figures.
func (s *SQLiteStorage) GetFigures(ctx context.Context, reportID string) ([]models.Figure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_number, figure_number, caption, figure_type FROM report_figures
		 WHERE report_id = ? ORDER BY page_number IS NULL, page_number`,
		reportID,
	)
	if err != nil {
		if errs.IsMissingTable(err) {
			s.logger.Warn("figure table missing", zap.Error(err))
			return nil, nil
		}
		return nil, persistErr("storage.get_figures", err)
	}
	defer rows.Close()

	var figures []models.Figure
	for rows.Next() {
		var page, number sql.NullInt64
		var caption sql.NullString
		var typ string
		if err := rows.Scan(&page, &number, &caption, &typ); err != nil {
			return nil, persistErr("storage.get_figures", err)
		}
		f := models.Figure{ReportID: reportID}
		f.Type, _ = models.ParseFigureType(typ)
		if page.Valid {
			p := int(page.Int64)
			f.Page = &p
		}
		if number.Valid {
			n := int(number.Int64)
			f.FigureNumber = &n
		}
		if caption.Valid {
			c := caption.String
			f.Caption = &c
		}
		figures = append(figures, f)
	}
	return figures, persistErr("storage.get_figures", rows.Err())
}

// CountReports returns the total number of reports.
func (s *SQLiteStorage) CountReports(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count)
	return count, persistErr("storage.count_reports", err)
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report_chunks`).Scan(&count)
	return count, persistErr("storage.count_chunks", err)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
