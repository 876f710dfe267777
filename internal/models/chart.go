package models

import "fmt"

// ChartKind is the requested chart shape.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartPie  ChartKind = "pie"
)

// Valid reports whether k is a known chart kind.
func (k ChartKind) Valid() bool {
	return k == ChartBar || k == ChartLine || k == ChartPie
}

// ParseChartKind validates s as a chart kind.
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown chart kind %q", s)
	}
	return k, nil
}

// Metric is the series a chart is computed from.
type Metric string

const (
	MetricTopTerms     Metric = "top_terms"
	MetricChunkLengths Metric = "chunk_lengths"
)

// Label returns the human label used in chart titles.
func (m Metric) Label() string {
	switch m {
	case MetricChunkLengths:
		return "Chunk lengths"
	default:
		return "Top terms"
	}
}

// Intent is the classifier's decision for a question.
type Intent struct {
	WantsChart bool      `json:"wants_chart"`
	Kind       ChartKind `json:"kind"`
	Metric     Metric    `json:"metric"`
}

// ChartPayload is a renderer-agnostic chart description. len(Labels) == len(Values).
type ChartPayload struct {
	Kind         ChartKind `json:"kind"`
	Title        string    `json:"title"`
	DatasetLabel string    `json:"dataset_label"`
	Labels       []string  `json:"labels"`
	Values       []float64 `json:"values"`
}

// Series is a labeled numeric series without chart framing.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// ReportMetrics holds the precomputed series for a report's data view.
type ReportMetrics struct {
	TopTerms     Series `json:"top_terms"`
	ChunkLengths Series `json:"chunk_lengths"`
}
