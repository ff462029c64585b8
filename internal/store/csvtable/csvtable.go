// Package csvtable implements store.TabularStore over a directory of CSV
// files, one file per table. The first record of each file is its header.
package csvtable

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cleared-dev/ledgerfeed/internal/model"
	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// Store keeps tables as <dir>/<table>.csv.
type Store struct {
	dir string
}

// New creates a Store over dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(table string) (string, error) {
	if table == "" || strings.ContainsAny(table, `/\`) || table == "." || table == ".." {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return filepath.Join(s.dir, table+".csv"), nil
}

func (s *Store) readAll(table string) ([][]string, error) {
	path, err := s.path(table)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", table, store.ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening table %s: %w", table, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", table, err)
	}
	return records, nil
}

// Create writes a new table holding only header. It fails if the table exists.
func (s *Store) Create(table string, header []string) error {
	path, err := s.path(table)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating workbook dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Header returns the first record of the table.
func (s *Store) Header(ctx context.Context, table string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.readAll(table)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	return records[0], nil
}

// LastValue scans the column upward from the bottom of the table and returns
// the first non-empty cell found below the header.
func (s *Store) LastValue(ctx context.Context, table, column string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.readAll(table)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", table, column, store.ErrColumnMissing)
	}
	col := store.ColumnIndex(records[0], column)
	if col < 0 {
		return nil, fmt.Errorf("%s.%s: %w", table, column, store.ErrColumnMissing)
	}
	for i := len(records) - 1; i >= 1; i-- {
		rec := records[i]
		if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
			return rec[col], nil
		}
	}
	return nil, nil
}

// Append writes rows at the end of the table in a single write.
func (s *Store) Append(ctx context.Context, table string, rows []model.RawRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	path, err := s.path(table)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("encoding row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", table, store.ErrTableNotFound)
	}
	if err != nil {
		return fmt.Errorf("opening table %s: %w", table, err)
	}
	defer f.Close()

	if err := ensureTrailingNewline(f); err != nil {
		return fmt.Errorf("appending to %s: %w", table, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending to %s: %w", table, err)
	}
	return nil
}

// ensureTrailingNewline terminates a last record that was saved without a
// newline, so appended rows start on their own line.
func ensureTrailingNewline(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}
