// Package extract provides text extraction from uploaded report formats.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hyperjump/reportqa/internal/errs"
	"github.com/hyperjump/reportqa/internal/models"
	"go.uber.org/zap"
)

// Format is a supported input format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatText Format = "text"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeText = "text/plain; charset=utf-8"
)

var extContentTypes = map[string]string{
	".pdf":  ContentTypePDF,
	".docx": ContentTypeDOCX,
	".xlsx": ContentTypeXLSX,
	".txt":  ContentTypeText,
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
}

// Result is the text of one document. Pages holds real page (or sheet) units when the
// format has them; it is nil for formats without page structure.
type Result struct {
	Format    Format
	Text      string
	Pages     []string
	PageCount int
}

// Extractor extracts plain text from report documents.
type Extractor struct {
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// ContentTypeForPath returns the content type for a file name by extension.
// Unknown extensions are treated as plain text.
func ContentTypeForPath(path string) string {
	if ct, ok := extContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return ContentTypeText
}

// DetectFormat picks the extraction path for a document. A generic or missing
// content type falls back to the file name, then to sniffing the bytes.
func DetectFormat(contentType, name string, content []byte) Format {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
			ct = ContentTypeForPath(name)
		} else if len(content) > 0 {
			ct = mimetype.Detect(content).String()
		}
	}
	switch {
	case strings.Contains(ct, "pdf"):
		return FormatPDF
	case strings.Contains(ct, "wordprocessingml") || strings.Contains(ct, "docx"):
		return FormatDOCX
	case strings.Contains(ct, "spreadsheetml") || strings.Contains(ct, "xlsx"):
		return FormatXLSX
	default:
		return FormatText
	}
}

// Extract returns the text of doc. Empty text is not an error here; callers decide.
func (e *Extractor) Extract(ctx context.Context, doc models.Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := DetectFormat(doc.ContentType, doc.Name, doc.Content)
	res := &Result{Format: format}
	var err error
	switch format {
	case FormatPDF:
		res.Pages, err = extractPDFPages(doc.Content)
		res.Text = strings.Join(res.Pages, "\n")
		res.PageCount = len(res.Pages)
	case FormatDOCX:
		res.Text, err = extractDOCX(doc.Content)
	case FormatXLSX:
		res.Pages, err = extractExcelSheets(doc.Content)
		res.Text = strings.TrimSpace(strings.Join(res.Pages, "\n"))
		res.PageCount = len(res.Pages)
	default:
		res.Text = extractPlain(doc.Content)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindExtractionFailed, "extract."+string(format), err)
	}
	e.logger.Debug("extracted document",
		zap.String("name", doc.Name),
		zap.String("format", string(format)),
		zap.Int("chars", len(res.Text)),
		zap.Int("pages", res.PageCount))
	return res, nil
}

// ReadDocument loads the file at path as a document named after its base name,
// typed by its extension.
func ReadDocument(path string) (models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, errs.Wrap(errs.KindExtractionFailed, "extract.read", err)
	}
	return models.Document{
		Name:        filepath.Base(path),
		ContentType: ContentTypeForPath(path),
		Content:     content,
	}, nil
}
