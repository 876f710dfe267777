// Package search answers questions about reports and serves their figures and metrics.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/reportqa/internal/chart"
	"github.com/hyperjump/reportqa/internal/embedding"
	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/extract"
	"github.com/hyperjump/reportqa/internal/figure"
	"github.com/hyperjump/reportqa/internal/indexer"
	"github.com/hyperjump/reportqa/internal/intent"
	"github.com/hyperjump/reportqa/internal/keyword"
	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/objectstore"
	"github.com/hyperjump/reportqa/internal/storage"
	"github.com/hyperjump/reportqa/internal/synth"
	"github.com/hyperjump/reportqa/internal/vector"
	"go.uber.org/zap"
)

const (
	// DefaultTopN is how many ranked chunks go into the answer context.
	DefaultTopN = 5
	// DefaultMaxFetchBytes caps a report downloaded for on-the-fly answering.
	DefaultMaxFetchBytes = 64 << 20
)

// Engine answers questions against stored chunks, or against a freshly fetched
// copy of the report when nothing is stored.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	chunker      *indexer.Chunker
	extractor    *extract.Extractor
	synthesizer  *synth.Synthesizer
	charts       *chart.Builder
	keywordIndex keyword.ReportIndex
	objects      objectstore.Store
	httpClient   *http.Client
	topN         int
	maxFetch     int64
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTopN sets how many chunks go into the answer context.
func WithTopN(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.topN = n
		}
	}
}

// WithChartBuilder replaces the default chart builder.
func WithChartBuilder(b *chart.Builder) Option {
	return func(e *Engine) { e.charts = b }
}

// WithKeywordIndex enables catalog search.
func WithKeywordIndex(k keyword.ReportIndex) Option {
	return func(e *Engine) { e.keywordIndex = k }
}

// WithObjectStore lets on-the-fly answering read stored originals without an HTTP round trip.
func WithObjectStore(s objectstore.Store) Option {
	return func(e *Engine) { e.objects = s }
}

// WithHTTPClient sets the client used to fetch reports by URL.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithMaxFetchBytes caps the size of a fetched report.
func WithMaxFetchBytes(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFetch = n
		}
	}
}

// NewEngine creates an answer engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	chunker *indexer.Chunker,
	extractor *extract.Extractor,
	synthesizer *synth.Synthesizer,
	opts ...Option,
) *Engine {
	e := &Engine{
		storage:     store,
		embedder:    embedder,
		chunker:     chunker,
		extractor:   extractor,
		synthesizer: synthesizer,
		topN:        DefaultTopN,
		maxFetch:    DefaultMaxFetchBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.charts == nil {
		e.charts = chart.NewBuilder()
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return e
}

// Answer returns a chart payload when the question asks for a visualization,
// otherwise a text answer grounded in the top-N most similar chunks.
func (e *Engine) Answer(ctx context.Context, req *models.AnswerRequest) (*models.AnswerResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "search.answer", err)
	}
	start := time.Now()
	in := intent.Classify(req.Question)

	var report *models.Report
	var chunks []*models.Chunk
	if req.ReportID != "" {
		r, err := e.storage.GetReport(ctx, req.ReportID)
		switch {
		case err == nil:
			report = r
		case errs.KindOf(err) != errs.KindNotFound:
			return nil, err
		}
		chunks, err = e.storage.GetChunks(ctx, req.ReportID)
		if err != nil {
			return nil, err
		}
	}
	name := req.Name
	if name == "" && report != nil {
		name = report.Name
	}

	var resp *models.AnswerResponse
	var err error
	if len(chunks) > 0 {
		resp, err = e.answerStored(ctx, req.Question, name, in, chunks)
	} else {
		resp, err = e.answerFetched(ctx, req, report, name, in)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("question answered",
		zap.String("report_id", req.ReportID),
		zap.Bool("chart", in.WantsChart),
		zap.Bool("used_stored", resp.UsedStored),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

func (e *Engine) answerStored(ctx context.Context, question, name string, in models.Intent, chunks []*models.Chunk) (*models.AnswerResponse, error) {
	if in.WantsChart {
		payload := e.charts.Build(in, name, models.ChunkTexts(chunks), "")
		return &models.AnswerResponse{OK: true, Type: "chart", Payload: &payload, UsedStored: true}, nil
	}
	qv, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, embedErr(err)
	}
	rc := vector.NewMemoryIndex(chunks...).Search(qv, e.topN)
	answer, err := e.synthesizer.Answer(ctx, name, question, rc)
	if err != nil {
		return nil, err
	}
	return &models.AnswerResponse{OK: true, Answer: answer, UsedStored: true, Context: rc}, nil
}

func (e *Engine) answerFetched(ctx context.Context, req *models.AnswerRequest, report *models.Report, name string, in models.Intent) (*models.AnswerResponse, error) {
	url, contentType := req.URL, req.ContentType
	if report != nil {
		if url == "" {
			url = report.SourceURL
		}
		if contentType == "" {
			contentType = report.ContentType
		}
	}
	if url == "" {
		return nil, errs.Newf(errs.KindNotFound, "search.answer", "report %s has no stored chunks and no url", req.ReportID)
	}
	doc, err := e.Fetch(ctx, url, contentType)
	if err != nil {
		return nil, err
	}
	res, err := e.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return nil, errs.New(errs.KindNoTextContent, "search.answer", "No text content extracted")
	}
	if in.WantsChart {
		payload := e.charts.Build(in, name, nil, text)
		return &models.AnswerResponse{OK: true, Type: "chart", Payload: &payload}, nil
	}

	chunks := e.chunker.Chunk(req.ReportID, text)
	vectors, err := e.embedder.EmbedBatch(ctx, models.ChunkTexts(chunks))
	if err != nil {
		return nil, embedErr(err)
	}
	if len(vectors) != len(chunks) {
		return nil, errs.Newf(errs.KindEmbeddingProvider, "search.embed", "got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}
	qv, err := e.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, embedErr(err)
	}
	rc := vector.NewMemoryIndex(chunks...).Search(qv, e.topN)
	answer, err := e.synthesizer.Answer(ctx, name, req.Question, rc)
	if err != nil {
		return nil, err
	}
	return &models.AnswerResponse{OK: true, Answer: answer, Context: rc}, nil
}

func embedErr(err error) error {
	if errs.KindOf(err) != "" {
		return err
	}
	return errs.Provider(errs.KindEmbeddingProvider, "search.embed", err, false)
}

// Fetch loads a report by URL. URLs of the local object store are read from disk.
func (e *Engine) Fetch(ctx context.Context, url, contentType string) (models.Document, error) {
	doc := models.Document{Name: nameFromURL(url), ContentType: contentType}
	if e.objects != nil {
		if key, ok := e.objects.KeyForURL(url); ok {
			rc, err := e.objects.Open(key)
			if err != nil {
				return doc, err
			}
			defer rc.Close()
			doc.Content, err = e.readLimited(rc)
			return doc, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return doc, errs.Wrap(errs.KindInvalidInput, "search.fetch", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return doc, errs.Wrap(errs.KindExtractionFailed, "search.fetch", fmt.Errorf("failed to fetch file: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return doc, errs.Newf(errs.KindExtractionFailed, "search.fetch", "failed to fetch file: %s", resp.Status)
	}
	doc.Content, err = e.readLimited(resp.Body)
	if err != nil {
		return doc, err
	}
	if doc.ContentType == "" {
		doc.ContentType = resp.Header.Get("Content-Type")
	}
	return doc, nil
}

// readLimited reads r in full and rejects content larger than the fetch cap.
func (e *Engine) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxFetch+1))
	if err != nil {
		return nil, errs.Wrap(errs.KindExtractionFailed, "search.fetch", err)
	}
	if int64(len(data)) > e.maxFetch {
		return nil, errs.Newf(errs.KindInvalidInput, "search.fetch", "report exceeds %d bytes", e.maxFetch)
	}
	return data, nil
}

func nameFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

// FiguresResult is the figure view of one report.
type FiguresResult struct {
	models.FigureSelection
	ReportID   string `json:"report_id"`
	ReportName string `json:"report_name"`
	TotalPages int    `json:"total_pages"`
}

// Figures returns the figures worth showing for a report, limited by its size.
// The stored page count is used when known, otherwise the size-based estimate.
func (e *Engine) Figures(ctx context.Context, reportID string) (*FiguresResult, error) {
	report, err := e.storage.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	pages := report.PageCount
	if pages <= 0 {
		pages = figure.EstimatePages(report.SizeBytes)
	}
	figures, err := e.storage.GetFigures(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return &FiguresResult{
		FigureSelection: figure.Select(figures, pages),
		ReportID:        reportID,
		ReportName:      report.Name,
		TotalPages:      pages,
	}, nil
}

// Metrics returns top terms and chunk lengths computed from stored chunks.
// A report without chunks yields empty series.
func (e *Engine) Metrics(ctx context.Context, reportID string) (models.ReportMetrics, error) {
	chunks, err := e.storage.GetChunks(ctx, reportID)
	if err != nil {
		return models.ReportMetrics{}, err
	}
	return e.charts.Metrics(models.ChunkTexts(chunks)), nil
}

// ReportHit is one catalog search result.
type ReportHit struct {
	Report *models.Report `json:"report"`
	Score  float64        `json:"score"`
}

// SearchReports finds reports whose name or text matches query.
// Catalog entries whose report no longer exists are dropped.
func (e *Engine) SearchReports(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]ReportHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.New(errs.KindInvalidInput, "search.reports", "missing query")
	}
	if e.keywordIndex == nil {
		return nil, errs.New(errs.KindConfiguration, "search.reports", "keyword index not configured")
	}
	results, err := e.keywordIndex.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	hits := make([]ReportHit, 0, len(results))
	for _, r := range results {
		report, err := e.storage.GetReport(ctx, r.ReportID)
		if errs.KindOf(err) == errs.KindNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, ReportHit{Report: report, Score: r.Score})
	}
	return hits, nil
}

// ListReports returns stored reports newest first.
func (e *Engine) ListReports(ctx context.Context, offset, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return e.storage.ListReports(ctx, offset, limit)
}
