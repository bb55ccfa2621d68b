package normalizer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"specadvisor/internal/schema"
)

// ReadXLSX extracts the data rows of an uploaded Excel workbook. The header
// row is discovered by scanning each sheet for a row that resolves to the
// identifier column; exported files often carry title rows above it.
func ReadXLSX(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	catalog := schema.NewCatalog()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		headerIdx := findHeaderRow(catalog, rows)
		if headerIdx < 0 {
			continue
		}
		return rowsToRaw(rows[headerIdx], rows[headerIdx+1:]), nil
	}

	return nil, fmt.Errorf("no sheet with a recognizable header row")
}

func findHeaderRow(catalog *schema.Catalog, rows [][]string) int {
	// Only scan the top of the sheet; real headers sit within the first rows.
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			if col, ok := catalog.Resolve(cell); ok && col.Kind == schema.KindIdentifier {
				return i
			}
		}
	}
	return -1
}

func rowsToRaw(header []string, data [][]string) []RawRow {
	var out []RawRow
	for _, row := range data {
		if isEmptyRow(row) {
			continue
		}
		raw := make(RawRow, len(header))
		for j, h := range header {
			h = strings.TrimSpace(h)
			if h == "" || j >= len(row) {
				continue
			}
			raw[h] = row[j]
		}
		out = append(out, raw)
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
