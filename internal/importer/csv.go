package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV tokenizes a CSV export. Rows may differ in width, stray quotes
// are tolerated and blank lines are skipped.
func ParseCSV(data []byte) ([]model.RawRow, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}
	rows := make([]model.RawRow, len(records))
	for i, rec := range records {
		rows[i] = rec
	}
	return rows, nil
}
