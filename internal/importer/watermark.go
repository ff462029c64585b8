package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cleared-dev/ledgerfeed/internal/model"
	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// Watermark is the newest date already present in a destination table.
type Watermark struct {
	Key    model.DateKey // NoDate for a table without dated rows
	Column int           // index of the watermark column in Header
	Header []string
}

// ResolveTarget reads the header of table.
func ResolveTarget(ctx context.Context, tables store.TabularStore, table string) ([]string, error) {
	header, err := tables.Header(ctx, table)
	if err != nil {
		if errors.Is(err, store.ErrTableNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return nil, fmt.Errorf("%w: reading header of %s: %w", ErrRemoteCall, table, err)
	}
	return header, nil
}

// ResolveWatermark derives the watermark of table from the last populated
// entry of column. The table is assumed to be written in ascending date
// order; the last entry is used, not the maximum.
func ResolveWatermark(ctx context.Context, tables store.TabularStore, table, column string, n *Normalizer) (Watermark, error) {
	header, err := ResolveTarget(ctx, tables, table)
	if err != nil {
		return Watermark{}, err
	}
	return watermarkFor(ctx, tables, table, column, header, n)
}

func watermarkFor(ctx context.Context, tables store.TabularStore, table, column string, header []string, n *Normalizer) (Watermark, error) {
	col := store.ColumnIndex(header, column)
	if col < 0 {
		return Watermark{}, fmt.Errorf("%w: %w: %q not in header of %s", ErrInvalidConfig, store.ErrColumnMissing, column, table)
	}

	v, err := tables.LastValue(ctx, table, header[col])
	if err != nil {
		if errors.Is(err, store.ErrTableNotFound) || errors.Is(err, store.ErrColumnMissing) {
			return Watermark{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return Watermark{}, fmt.Errorf("%w: reading last %s of %s: %w", ErrRemoteCall, column, table, err)
	}
	return Watermark{Key: n.Key(v), Column: col, Header: header}, nil
}
