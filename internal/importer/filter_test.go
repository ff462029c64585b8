package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

func TestFilterNewRows_BootstrapAdmitsUndated(t *testing.T) {
	n := NewNormalizer(time.UTC)
	batch := model.ImportBatch{
		{"2024-01-05", "10.00"},
		{"bad-date", "5.00"},
	}

	got := FilterNewRows(batch, 0, model.NoDate, n)
	assert.Equal(t, []model.RawRow{{"2024-01-05", "10.00"}, {"bad-date", "5.00"}}, got.Rows)
	assert.Equal(t, 1, got.Undated)
	assert.Equal(t, 0, got.Dropped(model.NoDate))
}

func TestFilterNewRows_StrictlyAfterWatermark(t *testing.T) {
	n := NewNormalizer(time.UTC)
	batch := model.ImportBatch{
		{"2024-01-05", "10.00"},
		{"2024-01-06", "7.50"},
	}

	got := FilterNewRows(batch, 0, 20240105, n)
	assert.Equal(t, []model.RawRow{{"2024-01-06", "7.50"}}, got.Rows)
	assert.Equal(t, 0, got.Undated)
}

func TestFilterNewRows_DropsUndatedOnceWatermarked(t *testing.T) {
	n := NewNormalizer(time.UTC)
	batch := model.ImportBatch{
		{"10.00", "2024-01-07"},
		{"5.00", ""},
		{"3.00"}, // date column missing
		{"1.00", "junk"},
	}

	got := FilterNewRows(batch, 1, 20240105, n)
	assert.Equal(t, []model.RawRow{{"10.00", "2024-01-07"}}, got.Rows)
	assert.Equal(t, 3, got.Undated)
	assert.Equal(t, 3, got.Dropped(20240105))
}

func TestFilterNewRows_PreservesOrderAndBounds(t *testing.T) {
	n := NewNormalizer(time.UTC)
	batch := model.ImportBatch{
		{"2024-01-09"},
		{"2024-01-02"},
		{"01/08/2024"},
		{"2024-01-04"},
		{"2024-01-10"},
		{"nope"},
	}
	for _, wm := range []model.DateKey{0, 20240101, 20240104, 20240109, 20240110, 20991231} {
		got := FilterNewRows(batch, 0, wm, n)
		assert.LessOrEqual(t, len(got.Rows), len(batch))
		last := -1
		for _, row := range got.Rows {
			if !wm.IsZero() {
				assert.Greater(t, n.Key(row.Cell(0)), wm, "watermark %d", wm)
			}
			pos := indexOf(batch, row)
			assert.Greater(t, pos, last, "order preserved")
			last = pos
		}
	}

	got := FilterNewRows(batch, 0, 20240104, n)
	assert.Equal(t, []model.RawRow{{"2024-01-09"}, {"01/08/2024"}, {"2024-01-10"}}, got.Rows)
}

func TestFilterNewRows_Empty(t *testing.T) {
	got := FilterNewRows(nil, 0, 20240105, NewNormalizer(time.UTC))
	assert.Empty(t, got.Rows)
	assert.Zero(t, got.Undated)
}

func indexOf(batch model.ImportBatch, row model.RawRow) int {
	for i, r := range batch {
		if &r[0] == &row[0] {
			return i
		}
	}
	return -1
}
