package normalizer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM is prepended by Excel when saving CSV as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV extracts the data rows of an uploaded CSV file. The first record is
// the header; a UTF-8 BOM is tolerated.
func ReadCSV(r io.Reader) ([]RawRow, error) {
	br := bufio.NewReader(r)
	if peek, err := br.Peek(len(utf8BOM)); err == nil && string(peek) == string(utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1 // ragged rows are handled downstream
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var data [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		data = append(data, record)
	}

	rows := rowsToRaw(header, data)
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv contains no data rows")
	}
	return rows, nil
}
