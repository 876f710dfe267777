package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// Override elements in [Content_Types].xml, in either attribute order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	// Text runs, paragraph ends, and explicit page breaks in document order.
	docxToken = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|</w:p>|<w:br\s[^>]*w:type="page"[^>]*/>`)
)

func readZipFile(zr *zip.Reader, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, err
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		return b, true, err
	}
	return nil, false, nil
}

// docxMainPart returns the main document part named in [Content_Types].xml,
// or the conventional word/document.xml.
func docxMainPart(zr *zip.Reader) string {
	ct, ok, err := readZipFile(zr, contentTypesPath)
	if !ok || err != nil {
		return docxDocumentXMLPath
	}
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindSubmatch(ct); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDocumentXMLPath
}

// extractDOCX returns the text of a .docx. Runs within a paragraph are concatenated,
// paragraphs end with a newline, and explicit page breaks become form feeds.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	part := docxMainPart(zr)
	docXML, ok, err := readZipFile(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: read %s: %w", part, err)
	}
	if !ok {
		return "", fmt.Errorf("extract DOCX: %s not found", part)
	}

	var b strings.Builder
	for _, m := range docxToken.FindAllSubmatch(docXML, -1) {
		tok := m[0]
		switch {
		case bytes.HasPrefix(tok, []byte("<w:t")):
			b.WriteString(html.UnescapeString(string(m[1])))
		case bytes.HasPrefix(tok, []byte("</w:p>")):
			b.WriteByte('\n')
		default:
			b.WriteByte('\f')
		}
	}
	return strings.TrimSpace(b.String()), nil
}
