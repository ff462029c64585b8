package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRawRowCell(t *testing.T) {
	row := RawRow{"2024-01-05", "10.00"}
	assert.Equal(t, "2024-01-05", row.Cell(0))
	assert.Equal(t, "10.00", row.Cell(1))
	assert.Equal(t, "", row.Cell(2))
	assert.Equal(t, "", row.Cell(-1))
}

func TestFileHandleIsCSV(t *testing.T) {
	tests := []struct {
		h    FileHandle
		want bool
	}{
		{FileHandle{Name: "export.csv"}, true},
		{FileHandle{Name: "EXPORT.CSV"}, true},
		{FileHandle{Name: "export", ContentType: "text/csv"}, true},
		{FileHandle{Name: "export", ContentType: "text/csv; charset=utf-8"}, true},
		{FileHandle{Name: "notes.txt", ContentType: "text/plain"}, false},
		{FileHandle{Name: "csv"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.h.IsCSV(), "IsCSV(%+v)", tt.h)
	}
}

func TestDateKeyOf(t *testing.T) {
	d := time.Date(2024, time.January, 5, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, DateKey(20240105), DateKeyOf(d))
	assert.Equal(t, "20240105", DateKeyOf(d).String())
	assert.True(t, NoDate.IsZero())
	assert.Less(t, int(NoDate), int(DateKey(10101)))
}
