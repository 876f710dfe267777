// Package figure detects figure references in report text and picks which to surface.
package figure

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/reportqa/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const captionTail = `(?:\s*[:\-–]?\s*([^\n]+))?`

// Tried in order; the first pattern that matches a page decides its figure.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Figure|Fig\.?)\s*(\d+)` + captionTail),
	regexp.MustCompile(`(?i)(?:Chart|Graph)\s*(\d+)` + captionTail),
	regexp.MustCompile(`(?i)(?:Table)\s*(\d+)` + captionTail),
	regexp.MustCompile(`(?i)(?:Diagram)\s*(\d+)` + captionTail),
}

// Detector finds at most one figure reference per page.
type Detector struct {
	workers int
	logger  *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// WithWorkers bounds the number of pages scanned concurrently.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{workers: 8}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// DetectText returns the figure referenced in one page of text, or nil.
// The returned figure has no page or report set.
func DetectText(text string) *models.Figure {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		f := &models.Figure{Type: classify(m[0])}
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.FigureNumber = &n
		}
		caption := strings.TrimSpace(m[0])
		f.Caption = &caption
		return f
	}
	return nil
}

func classify(match string) models.FigureType {
	lower := strings.ToLower(match)
	switch {
	case strings.Contains(lower, "chart"):
		return models.FigureChart
	case strings.Contains(lower, "graph"):
		return models.FigureGraph
	case strings.Contains(lower, "table"):
		return models.FigureTable
	case strings.Contains(lower, "diagram"):
		return models.FigureDiagram
	case strings.Contains(lower, "fig"):
		if strings.Contains(lower, "bar") || strings.Contains(lower, "pie") {
			return models.FigureChart
		}
	}
	return models.FigureOther
}

// DetectPages scans pages concurrently and returns one figure per page that
// references one, ordered by page. Page numbers are 1-based.
func (d *Detector) DetectPages(ctx context.Context, reportID string, pages []string) ([]models.Figure, error) {
	found := make([]*models.Figure, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i := range pages {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if f := DetectText(pages[i]); f != nil {
				page := i + 1
				f.Page = &page
				f.ReportID = reportID
				found[i] = f
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var out []models.Figure
	for _, f := range found {
		if f == nil || seen[*f.Page] {
			continue
		}
		seen[*f.Page] = true
		out = append(out, *f)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Page < *out[j].Page })
	d.logger.Debug("figures detected", zap.String("report_id", reportID),
		zap.Int("pages", len(pages)), zap.Int("figures", len(out)))
	return out, nil
}
