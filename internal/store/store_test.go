package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnIndex(t *testing.T) {
	header := []string{"Date", " Description ", "Amount"}
	assert.Equal(t, 0, ColumnIndex(header, "Date"))
	assert.Equal(t, 1, ColumnIndex(header, "Description"))
	assert.Equal(t, 2, ColumnIndex(header, " Amount"))
	assert.Equal(t, -1, ColumnIndex(header, "date"))
	assert.Equal(t, -1, ColumnIndex(nil, "Date"))
}
