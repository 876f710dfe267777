package models

import (
	"fmt"
	"strings"
)

// AnswerRequest asks a question about a report. URL and ContentType locate the
// original file when the report has no stored chunks.
type AnswerRequest struct {
	ReportID    string `json:"report_id,omitempty"`
	Question    string `json:"question"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Validate trims fields and rejects requests with nothing to answer from.
func (r *AnswerRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	r.ReportID = strings.TrimSpace(r.ReportID)
	if r.Question == "" {
		return fmt.Errorf("missing question")
	}
	if r.ReportID == "" && r.URL == "" {
		return fmt.Errorf("missing report_id or url")
	}
	return nil
}

// AnswerResponse is either a textual answer or a chart payload (Type "chart").
type AnswerResponse struct {
	OK         bool             `json:"ok"`
	Type       string           `json:"type,omitempty"`
	Answer     string           `json:"answer,omitempty"`
	Payload    *ChartPayload    `json:"payload,omitempty"`
	UsedStored bool             `json:"used_stored"`
	Context    RetrievalContext `json:"context,omitempty"`
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	ReportID  string `json:"report_id"`
	Chunks    int    `json:"chunks"`
	Figures   int    `json:"figures"`
	PageCount int    `json:"page_count"`
	SourceURL string `json:"source_url,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// IndexRequest asks the server to fetch a report by URL and ingest it.
type IndexRequest struct {
	ReportID    string `json:"report_id"`
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Validate trims fields and requires a URL.
func (r *IndexRequest) Validate() error {
	r.ReportID = strings.TrimSpace(r.ReportID)
	r.URL = strings.TrimSpace(r.URL)
	if r.URL == "" {
		return fmt.Errorf("missing url")
	}
	return nil
}
