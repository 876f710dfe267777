// Package cli provides output helpers for the reportqa command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/search"
	"github.com/hyperjump/reportqa/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer or chart payload.
func WriteAnswer(w io.Writer, resp *models.AnswerResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if resp.Type == "chart" && resp.Payload != nil {
		writeChart(w, resp.Payload)
		return nil
	}
	fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(resp.Answer))
	if len(resp.Context) > 0 {
		fmt.Fprintln(w, "--- Excerpts ---")
		for _, c := range resp.Context {
			fmt.Fprintf(w, "[#%d] score %.4f  %s\n", c.ChunkIndex+1, c.Score, TruncateWords(oneLine(c.Text), 20))
		}
	}
	source := "fetched"
	if resp.UsedStored {
		source = "stored"
	}
	fmt.Fprintf(w, "(answered from %s text)\n", source)
	return nil
}

func writeChart(w io.Writer, p *models.ChartPayload) {
	fmt.Fprintf(w, "\n%s (%s chart, %s)\n", p.Title, p.Kind, p.DatasetLabel)
	width := 0
	for _, l := range p.Labels {
		if len(l) > width {
			width = len(l)
		}
	}
	peak := 0.0
	for _, v := range p.Values {
		if v > peak {
			peak = v
		}
	}
	for i, l := range p.Labels {
		fmt.Fprintf(w, "  %-*s %8.0f %s\n", width, l, p.Values[i], bar(p.Values[i], peak, 30))
	}
}

func bar(v, peak float64, width int) string {
	if peak <= 0 || v <= 0 {
		return ""
	}
	n := int(v / peak * float64(width))
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

// WriteFigures writes the figure selection of one report.
func WriteFigures(w io.Writer, res *search.FiguresResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "\n%s (%d pages, %s)\n", res.ReportName, res.TotalPages, res.SizeClass)
	fmt.Fprintf(w, "%s\n", res.Message)
	for _, f := range res.Shown {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s", f.Type)
		if f.FigureNumber != nil {
			fmt.Fprintf(w, " %d", *f.FigureNumber)
		}
		if f.Page != nil {
			fmt.Fprintf(w, " (page %d)", *f.Page)
		}
		fmt.Fprintln(w)
		if f.Caption != nil && *f.Caption != "" {
			fmt.Fprintf(w, "%s\n", utils.Truncate(*f.Caption, 200))
		}
	}
	return nil
}

// WriteMetrics writes the top terms and chunk lengths of a report.
func WriteMetrics(w io.Writer, m models.ReportMetrics, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, m)
	}
	fmt.Fprintln(w, "--- Top terms ---")
	for i, l := range m.TopTerms.Labels {
		fmt.Fprintf(w, "%-20s %6.0f\n", l, m.TopTerms.Values[i])
	}
	fmt.Fprintln(w, "--- Chunk lengths ---")
	for i, l := range m.ChunkLengths.Labels {
		fmt.Fprintf(w, "%-20s %6.0f\n", l, m.ChunkLengths.Values[i])
	}
	return nil
}

// WriteReportHits writes catalog search results.
func WriteReportHits(w io.Writer, hits []search.ReportHit, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, hits)
	}
	fmt.Fprintf(w, "\nFound %d report(s)\n\n", len(hits))
	for i, h := range hits {
		fmt.Fprintf(w, "%d. %s  score %.4f\n", i+1, h.Report.Name, h.Score)
		fmt.Fprintf(w, "   id: %s  pages: %d  chunks: %d\n", h.Report.ID, h.Report.PageCount, h.Report.ChunkCount)
	}
	return nil
}

// WriteIngestResult writes the outcome of one ingestion.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Skipped {
		fmt.Fprintf(w, "Unchanged, skipped: %s\n", res.ReportID)
		return nil
	}
	fmt.Fprintf(w, "Report indexed: %s (%d chunks, %d figures, %d pages)\n",
		res.ReportID, res.Chunks, res.Figures, res.PageCount)
	if res.SourceURL != "" {
		fmt.Fprintf(w, "Original: %s\n", res.SourceURL)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
