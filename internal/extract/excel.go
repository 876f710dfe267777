package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcelSheets renders each sheet as tab-separated rows, one string per sheet.
func extractExcelSheets(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		sheets = append(sheets, strings.TrimSpace(buf.String()))
	}
	return sheets, nil
}
