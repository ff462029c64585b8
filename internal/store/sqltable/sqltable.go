// Package sqltable implements store.TabularStore over SQL tables.
//
// Each table needs an ordering column (by default "id", an auto-increment
// key) that defines "last row". The ordering column is hidden from Header
// and is never written by Append.
//
// Supported drivers: "sqlite3", "pgx" and "postgres".
package sqltable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Registered drivers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/ledgerfeed/internal/model"
	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// DefaultOrderColumn is used when no ordering column is configured.
const DefaultOrderColumn = "id"

// Store reads and appends rows in SQL tables.
type Store struct {
	db          *sql.DB
	driverName  string
	orderColumn string
}

// New opens a database.
// eg "sqlite3", "/var/lib/ledgerfeed/books.db"
// eg "pgx", "postgres://user@localhost/books"
func New(driver, dsn, orderColumn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	return NewFromDB(driver, db, orderColumn)
}

// NewFromDB wraps an open database. The database is closed if it cannot be
// reached.
func NewFromDB(driver string, db *sql.DB, orderColumn string) (*Store, error) {
	switch driver {
	case "sqlite3", "pgx", "postgres":
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	if orderColumn == "" {
		orderColumn = DefaultOrderColumn
	}
	return &Store{db: db, driverName: driver, orderColumn: orderColumn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebind(q string) string {
	return rebind(bindType(s.driverName), q)
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var q string
	switch s.driverName {
	case "sqlite3":
		q = "SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name=?"
	default:
		q = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ANY(current_schemas(false)) AND table_name=?"
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(q), table).Scan(&n); err != nil {
		return false, fmt.Errorf("looking up table %s: %w", table, err)
	}
	return n > 0, nil
}

// Header returns the table's columns in declaration order, without the
// ordering column.
func (s *Store) Header(ctx context.Context, table string) ([]string, error) {
	ok, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, store.ErrTableNotFound)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	header := make([]string, 0, len(cols))
	for _, c := range cols {
		if c == s.orderColumn {
			continue
		}
		header = append(header, c)
	}
	return header, nil
}

// LastValue returns the last non-null, non-blank value of column in
// ordering-column order. Dates and zone-less timestamps come back as their
// wall-clock text; only zoned timestamps come back as time.Time.
func (s *Store) LastValue(ctx context.Context, table, column string) (any, error) {
	header, err := s.Header(ctx, table)
	if err != nil {
		return nil, err
	}
	idx := store.ColumnIndex(header, column)
	if idx < 0 {
		return nil, fmt.Errorf("%s.%s: %w", table, column, store.ErrColumnMissing)
	}

	col := quoteIdent(header[idx])
	q := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IS NOT NULL AND TRIM(CAST(%s AS TEXT)) <> '' ORDER BY %s DESC LIMIT 1",
		col, quoteIdent(table), col, col, quoteIdent(s.orderColumn))

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading last %s of %s: %w", column, table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("reading last %s of %s: %w", column, table, err)
		}
		return nil, nil
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column type of %s.%s: %w", table, column, err)
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, fmt.Errorf("reading last %s of %s: %w", column, table, err)
	}
	return cellValue(v, types[0].DatabaseTypeName()), nil
}

// cellValue converts a scanned value for the normalizer. DATE and zone-less
// TIMESTAMP/DATETIME values carry no instant: drivers hand them back as UTC,
// so they are returned as wall-clock text and never shifted into another zone.
func cellValue(v any, dbType string) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		switch strings.ToUpper(dbType) {
		case "DATE":
			return x.Format("2006-01-02")
		case "TIMESTAMP", "DATETIME":
			return x.Format("2006-01-02 15:04:05")
		}
	}
	return v
}

// Append inserts rows in one transaction. Cells map positionally onto the
// header; empty cells are stored as NULL. A row with a non-empty cell beyond
// the last column is rejected and nothing is written.
func (s *Store) Append(ctx context.Context, table string, rows []model.RawRow) error {
	if len(rows) == 0 {
		return nil
	}
	header, err := s.Header(ctx, table)
	if err != nil {
		return err
	}

	args := make([][]any, len(rows))
	for i, row := range rows {
		vals, err := rowArgs(row, len(header))
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		args[i] = vals
	}

	cols := make([]string, len(header))
	marks := make([]string, len(header))
	for i, h := range header {
		cols[i] = quoteIdent(h)
		marks[i] = "?"
	}
	q := s.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ","), strings.Join(marks, ",")))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, vals := range args {
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			return fmt.Errorf("inserting row %d into %s: %w", i, table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func rowArgs(row model.RawRow, width int) ([]any, error) {
	for i := width; i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return nil, fmt.Errorf("%d cells for %d columns: %w", len(row), width, store.ErrRowRejected)
		}
	}
	vals := make([]any, width)
	for i := range vals {
		if i < len(row) && row[i] != "" {
			vals[i] = row[i]
		}
	}
	return vals, nil
}
