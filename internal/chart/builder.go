package chart

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/reportqa/internal/models"
)

const (
	// ChartTerms is the number of terms shown in a chart answer.
	ChartTerms = 10
	// MetricTerms is the number of terms in the report data view.
	MetricTerms = 12
)

// Builder turns an intent plus report text into a chart payload.
type Builder struct {
	chartTerms  int
	metricTerms int
}

// Option configures a Builder.
type Option func(*Builder)

// WithTermLimits overrides the number of terms for charts and for metrics.
func WithTermLimits(chartTerms, metricTerms int) Option {
	return func(b *Builder) {
		if chartTerms > 0 {
			b.chartTerms = chartTerms
		}
		if metricTerms > 0 {
			b.metricTerms = metricTerms
		}
	}
}

// NewBuilder creates a Builder with the default term limits.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{chartTerms: ChartTerms, metricTerms: MetricTerms}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ChunkLengths labels each chunk "Chunk i" (1-based) with its length in characters.
func ChunkLengths(chunks []string) models.Series {
	s := models.Series{Labels: make([]string, len(chunks)), Values: make([]float64, len(chunks))}
	for i, c := range chunks {
		s.Labels[i] = fmt.Sprintf("Chunk %d", i+1)
		s.Values[i] = float64(utf8.RuneCountInString(c))
	}
	return s
}

func termSeries(terms []TermCount) models.Series {
	s := models.Series{Labels: make([]string, len(terms)), Values: make([]float64, len(terms))}
	for i, t := range terms {
		s.Labels[i] = t.Term
		s.Values[i] = float64(t.Count)
	}
	return s
}

// Build computes the chart for intent. Stored chunk texts are used when present,
// otherwise rawText stands in as a single chunk.
func (b *Builder) Build(in models.Intent, reportName string, chunks []string, rawText string) models.ChartPayload {
	if len(chunks) == 0 {
		chunks = []string{rawText}
	}
	name := strings.TrimSpace(reportName)
	if name == "" {
		name = "Report"
	}
	if in.Metric == models.MetricChunkLengths {
		s := ChunkLengths(chunks)
		return models.ChartPayload{
			Kind:         models.ChartLine,
			Title:        name + " — " + models.MetricChunkLengths.Label(),
			DatasetLabel: "Length",
			Labels:       s.Labels,
			Values:       s.Values,
		}
	}
	kind := in.Kind
	if !kind.Valid() {
		kind = models.ChartBar
	}
	s := termSeries(TopTerms(strings.Join(chunks, "\n"), b.chartTerms))
	return models.ChartPayload{
		Kind:         kind,
		Title:        name + " — " + models.MetricTopTerms.Label(),
		DatasetLabel: "Count",
		Labels:       s.Labels,
		Values:       s.Values,
	}
}

// Metrics returns the report data view: top terms across all chunks and per-chunk lengths.
func (b *Builder) Metrics(chunks []string) models.ReportMetrics {
	return models.ReportMetrics{
		TopTerms:     termSeries(TopTerms(strings.Join(chunks, "\n"), b.metricTerms)),
		ChunkLengths: ChunkLengths(chunks),
	}
}
