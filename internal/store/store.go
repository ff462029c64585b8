// Package store defines the collaborators the import engine reads from and
// writes to. Adapters live in the subpackages.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

var (
	// ErrTableNotFound is returned by a TabularStore when the table does not exist.
	ErrTableNotFound = errors.New("table not found")
	// ErrColumnMissing is returned when a table header lacks a required column.
	ErrColumnMissing = errors.New("column missing")
	// ErrRowRejected is returned by Append when a row does not fit the table.
	ErrRowRejected = errors.New("row rejected")
)

// FileStore lists, reads and archives source files.
type FileStore interface {
	// List returns the entries directly inside location, in store order.
	List(ctx context.Context, location string) ([]model.FileHandle, error)
	// Read returns the full content of a listed file.
	Read(ctx context.Context, h model.FileHandle) ([]byte, error)
	// Move relocates a listed file from one location to another.
	Move(ctx context.Context, h model.FileHandle, from, to string) error
}

// TabularStore is an append-only destination of rows.
type TabularStore interface {
	// Header returns the ordered column names of table, or ErrTableNotFound.
	Header(ctx context.Context, table string) ([]string, error)
	// LastValue returns the last non-empty value of column below the header,
	// or nil when the column has no populated data cell.
	LastValue(ctx context.Context, table, column string) (any, error)
	// Append writes rows, in order, after the last row of table.
	Append(ctx context.Context, table string, rows []model.RawRow) error
}

// ColumnIndex returns the position of name in header, comparing cells with
// surrounding whitespace trimmed, or -1.
func ColumnIndex(header []string, name string) int {
	name = strings.TrimSpace(name)
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}
