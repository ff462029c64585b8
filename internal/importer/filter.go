package importer

import "github.com/cleared-dev/ledgerfeed/internal/model"

// Filtered is the outcome of FilterNewRows.
type Filtered struct {
	Rows []model.RawRow
	// Undated counts input rows whose date cell was missing or unparseable.
	// They are admitted only while the watermark is NoDate.
	Undated int
}

// Dropped returns how many undated rows were excluded.
func (f Filtered) Dropped(watermark model.DateKey) int {
	if watermark.IsZero() {
		return 0
	}
	return f.Undated
}

// FilterNewRows keeps the rows whose date in column col is strictly newer
// than watermark, preserving order. Against an empty table (watermark NoDate)
// every row is kept, undated ones included.
func FilterNewRows(batch model.ImportBatch, col int, watermark model.DateKey, n *Normalizer) Filtered {
	var out Filtered
	for _, row := range batch {
		k := n.Key(row.Cell(col))
		if k.IsZero() {
			out.Undated++
		}
		if watermark.IsZero() || k > watermark {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
