package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDFPages returns the plain text of each page in order. Null pages yield "".
func extractPDFPages(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages[i-1] = text
	}
	return pages, nil
}
