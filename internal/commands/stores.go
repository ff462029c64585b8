package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cleared-dev/ledgerfeed/internal/config"
	"github.com/cleared-dev/ledgerfeed/internal/importer"
	"github.com/cleared-dev/ledgerfeed/internal/store"
	"github.com/cleared-dev/ledgerfeed/internal/store/csvtable"
	"github.com/cleared-dev/ledgerfeed/internal/store/localfs"
	"github.com/cleared-dev/ledgerfeed/internal/store/s3files"
	"github.com/cleared-dev/ledgerfeed/internal/store/sqltable"
)

// stores opens the configured stores on first use. Relative paths are
// resolved against baseDir, the directory holding the config file.
type stores struct {
	cfg     *config.Config
	baseDir string
	files   map[string]store.FileStore
	tables  map[string]store.TabularStore
	sql     []*sqltable.Store
}

func newStores(cfg *config.Config, baseDir string) *stores {
	return &stores{
		cfg:     cfg,
		baseDir: baseDir,
		files:   make(map[string]store.FileStore),
		tables:  make(map[string]store.TabularStore),
	}
}

func resolvePath(baseDir, p string) string {
	if p == "" {
		return baseDir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func (s *stores) fileStore(ctx context.Context, name string) (store.FileStore, error) {
	if fs, ok := s.files[name]; ok {
		return fs, nil
	}
	fc, ok := s.cfg.FileStores[name]
	if !ok {
		return nil, fmt.Errorf("unknown file store %q", name)
	}

	var fs store.FileStore
	switch fc.Type {
	case config.FileStoreLocal:
		fs = localfs.New(resolvePath(s.baseDir, fc.Root))
	case config.FileStoreS3:
		st, err := s3files.New(ctx, s3files.Options{
			Region:    fc.Region,
			Endpoint:  fc.Endpoint,
			PathStyle: fc.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("file store %q: %w", name, err)
		}
		fs = st
	default:
		return nil, fmt.Errorf("file store %q: unknown type %q", name, fc.Type)
	}
	s.files[name] = fs
	return fs, nil
}

func (s *stores) tableStore(name string) (store.TabularStore, error) {
	if ts, ok := s.tables[name]; ok {
		return ts, nil
	}
	tc, ok := s.cfg.TableStores[name]
	if !ok {
		return nil, fmt.Errorf("unknown table store %q", name)
	}

	var ts store.TabularStore
	switch tc.Type {
	case config.TableStoreCSV:
		ts = csvtable.New(resolvePath(s.baseDir, tc.Path))
	case config.TableStoreSQLite:
		st, err := sqltable.New(tc.Type, resolvePath(s.baseDir, tc.Path), tc.OrderColumn)
		if err != nil {
			return nil, fmt.Errorf("table store %q: %w", name, err)
		}
		s.sql = append(s.sql, st)
		ts = st
	case config.TableStorePgx, config.TableStorePostgres:
		st, err := sqltable.New(tc.Type, tc.DSN, tc.OrderColumn)
		if err != nil {
			return nil, fmt.Errorf("table store %q: %w", name, err)
		}
		s.sql = append(s.sql, st)
		ts = st
	default:
		return nil, fmt.Errorf("table store %q: unknown type %q", name, tc.Type)
	}
	s.tables[name] = ts
	return ts, nil
}

// feeds builds the importer feeds for the configured feeds, or for the one
// named only when it is set.
func (s *stores) feeds(ctx context.Context, only string) ([]importer.Feed, error) {
	selected := s.cfg.Feeds
	if only != "" {
		fc, ok := s.cfg.FeedByName(only)
		if !ok {
			return nil, fmt.Errorf("no feed named %q", only)
		}
		selected = []config.FeedConfig{fc}
	}

	out := make([]importer.Feed, 0, len(selected))
	for _, fc := range selected {
		fsName := s.cfg.FileStoreFor(fc)
		files, err := s.fileStore(ctx, fsName)
		if err != nil {
			return nil, err
		}
		tsName := s.cfg.TableStoreFor(fc)
		tables, err := s.tableStore(tsName)
		if err != nil {
			return nil, err
		}
		out = append(out, importer.Feed{
			Name:         fc.DisplayName(),
			Table:        fc.Table,
			Source:       fc.Source,
			Archive:      fc.Archive,
			DateColumn:   fc.DateColumn,
			MetadataRows: fc.MetadataRows,
			AmountColumn: fc.AmountColumn,
			Files:        files,
			Tables:       tables,
			Destination:  tsName + "/" + fc.Table,
		})
	}
	return out, nil
}

// Close releases database connections.
func (s *stores) Close() error {
	var first error
	for _, st := range s.sql {
		if err := st.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
