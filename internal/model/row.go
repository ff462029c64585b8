package model

// RawRow is one parsed CSV record. Cells are positionally aligned to the CSV
// columns; width may differ between rows.
type RawRow []string

// Cell returns the cell at i, or "" when the row is too short.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// ImportBatch is the parsed content of one file after metadata rows are dropped.
type ImportBatch []RawRow
