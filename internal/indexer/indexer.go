package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/reportqa/internal/embedding"
	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/extract"
	"github.com/hyperjump/reportqa/internal/figure"
	"github.com/hyperjump/reportqa/internal/fileid"
	"github.com/hyperjump/reportqa/internal/keyword"
	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/objectstore"
	"github.com/hyperjump/reportqa/internal/storage"
	"github.com/hyperjump/reportqa/pkg/utils"
	"go.uber.org/zap"
)

// Indexer runs report ingestion: extract, chunk, embed, persist chunks, then figures.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	chunker      *Chunker
	extractor    *extract.Extractor
	detector     *figure.Detector
	keywordIndex keyword.ReportIndex
	objects      objectstore.Store
	logger       *zap.Logger
	locks        keyedMutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex catalogs each ingested report for keyword lookup.
func WithKeywordIndex(k keyword.ReportIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithObjectStore keeps each ingested original so it can be fetched again by URL.
func WithObjectStore(s objectstore.Store) IndexerOption {
	return func(idx *Indexer) { idx.objects = s }
}

// WithDetector replaces the default figure detector.
func WithDetector(d *figure.Detector) IndexerOption {
	return func(idx *Indexer) { idx.detector = d }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store storage.Storage, embedder embedding.Embedder, chunker *Chunker, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:   store,
		embedder:  embedder,
		chunker:   chunker,
		extractor: extractor,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	if idx.detector == nil {
		idx.detector = figure.NewDetector(figure.WithLogger(idx.logger))
	}
	return idx
}

// ObjectKey returns the object-store key for a report's original file.
func ObjectKey(reportID, name string) string {
	return objectPrefix(reportID) + utils.SafeName(name)
}

func objectPrefix(reportID string) string {
	return "reports/" + reportID + "/"
}

// Ingest indexes doc as report reportID, replacing any earlier chunks and figures.
// An empty reportID gets a fresh random ID.
func (idx *Indexer) Ingest(ctx context.Context, reportID string, doc models.Document) (*models.IngestResult, error) {
	if reportID == "" {
		reportID = fileid.NewReportID()
	}
	unlock := idx.locks.lock(reportID)
	defer unlock()

	log := idx.logger.With(zap.String("report_id", reportID), zap.String("name", doc.Name))
	start := time.Now()

	res, err := idx.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return nil, errs.New(errs.KindNoTextContent, "indexer.ingest", "No text content extracted")
	}

	chunks := idx.chunker.Chunk(reportID, text)
	vectors, err := idx.embedder.EmbedBatch(ctx, models.ChunkTexts(chunks))
	if err != nil {
		if errs.KindOf(err) == "" {
			err = errs.Provider(errs.KindEmbeddingProvider, "indexer.embed", err, false)
		}
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, errs.Newf(errs.KindEmbeddingProvider, "indexer.embed", "got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}
	if err := idx.storage.ReplaceChunks(ctx, reportID, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	pageCount := res.PageCount
	if pageCount <= 0 {
		if n := strings.Count(text, "\f"); n > 0 {
			pageCount = n + 1
		} else {
			pageCount = figure.EstimatePages(int64(len(doc.Content)))
		}
	}
	figures := idx.detectFigures(ctx, log, reportID, res, text, pageCount)

	sourceURL := ""
	if idx.objects != nil {
		u, upErr := idx.objects.Upload(ctx, ObjectKey(reportID, doc.Name), doc.Content, doc.ContentType)
		if upErr != nil {
			log.Warn("failed to store original", zap.Error(upErr))
		} else {
			sourceURL = u
		}
	}

	report := &models.Report{
		ID:          reportID,
		Name:        doc.Name,
		ContentType: doc.ContentType,
		SizeBytes:   int64(len(doc.Content)),
		PageCount:   pageCount,
		ChunkCount:  len(chunks),
		SourceURL:   sourceURL,
	}
	if err := idx.storage.UpsertReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Index(ctx, report, text); err != nil {
			log.Warn("failed to catalog report", zap.Error(err))
		}
	}

	log.Debug("report ingested",
		zap.Int("chunks", len(chunks)),
		zap.Int("figures", figures),
		zap.Int("pages", pageCount),
		zap.Duration("took", time.Since(start)))
	return &models.IngestResult{
		ReportID:  reportID,
		Chunks:    len(chunks),
		Figures:   figures,
		PageCount: pageCount,
		SourceURL: sourceURL,
	}, nil
}

// detectFigures is best-effort: failures are logged and never undo chunk persistence.
func (idx *Indexer) detectFigures(ctx context.Context, log *zap.Logger, reportID string, res *extract.Result, text string, pageCount int) int {
	pages := res.Pages
	if len(pages) == 0 {
		pages = figure.SplitPages(text, pageCount)
	}
	figures, err := idx.detector.DetectPages(ctx, reportID, pages)
	if err != nil {
		log.Warn("figure detection failed", zap.Error(err))
		return 0
	}
	if err := idx.storage.ReplaceFigures(ctx, reportID, figures); err != nil {
		log.Warn("failed to store figures", zap.Error(err))
		return 0
	}
	return len(figures)
}

// IngestFile reads a file from path and ingests it under an ID derived from the
// absolute path, so re-ingesting replaces the same report. If allowedExts is non-empty
// the extension must be listed (case-insensitive). An unchanged file (same size,
// not modified since the last ingest) is skipped unless force is set.
func (idx *Indexer) IngestFile(ctx context.Context, path string, allowedExts []string, force bool) (*models.IngestResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, errs.Newf(errs.KindInvalidInput, "indexer.ingest_file", "extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, errs.Newf(errs.KindInvalidInput, "indexer.ingest_file", "not a regular file: %s", absPath)
	}
	reportID := fileid.ForPath(absPath)
	if !force {
		if existing, getErr := idx.storage.GetReport(ctx, reportID); getErr == nil && unchanged(existing, info) {
			idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
			return &models.IngestResult{
				ReportID:  reportID,
				Chunks:    existing.ChunkCount,
				PageCount: existing.PageCount,
				SourceURL: existing.SourceURL,
				Skipped:   true,
			}, nil
		}
	}
	doc, err := extract.ReadDocument(absPath)
	if err != nil {
		return nil, err
	}
	return idx.Ingest(ctx, reportID, doc)
}

func unchanged(r *models.Report, info os.FileInfo) bool {
	return r.SizeBytes == info.Size() && !r.UpdatedAt.Before(info.ModTime())
}

// IngestDirectory walks dir recursively and ingests each regular file whose extension
// is in allowedExts (all files when empty). Files without text are skipped with a warning.
// Returns the number of files ingested and the first error encountered, if any.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string, force bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		res, ingestErr := idx.IngestFile(ctx, path, allowedExts, force)
		if errs.KindOf(ingestErr) == errs.KindNoTextContent {
			idx.logger.Warn("skipping file without text", zap.String("path", path))
			return nil
		}
		if ingestErr != nil {
			return fmt.Errorf("%s: %w", path, ingestErr)
		}
		if !res.Skipped {
			n++
		}
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// RemoveFile deletes the report ingested from path, if any.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	return idx.DeleteReport(ctx, fileid.ForPath(absPath))
}

// DeleteReport removes a report from the catalog, the object store, and storage.
func (idx *Indexer) DeleteReport(ctx context.Context, id string) error {
	unlock := idx.locks.lock(id)
	defer unlock()

	idx.logger.Debug("indexer deleting report", zap.String("report_id", id))
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if idx.objects != nil {
		if err := idx.objects.Delete(ctx, objectPrefix(id)); err != nil {
			return fmt.Errorf("failed to delete stored original: %w", err)
		}
	}
	if err := idx.storage.DeleteReport(ctx, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// keyedMutex serializes work per report ID within the process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
