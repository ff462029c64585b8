package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cleared-dev/ledgerfeed/internal/model"
	"github.com/cleared-dev/ledgerfeed/internal/store"
)

// memFiles is an in-memory FileStore. Locations hold files in insertion order.
type memFiles struct {
	mu        sync.Mutex
	locations map[string][]memFile
	readErr   map[string]error
	moveErr   error
	listErr   error
	readPanic bool
	reads     int
}

type memFile struct {
	name    string
	content string
}

func newMemFiles() *memFiles {
	return &memFiles{locations: make(map[string][]memFile), readErr: make(map[string]error)}
}

func (m *memFiles) put(location, name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[location] = append(m.locations[location], memFile{name: name, content: content})
}

func (m *memFiles) names(location string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, f := range m.locations[location] {
		out = append(out, f.name)
	}
	return out
}

func (m *memFiles) List(_ context.Context, location string) ([]model.FileHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.FileHandle
	for _, f := range m.locations[location] {
		out = append(out, model.FileHandle{ID: location + "/" + f.name, Name: f.name})
	}
	return out, nil
}

func (m *memFiles) Read(_ context.Context, h model.FileHandle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readPanic {
		panic("corrupt handle")
	}
	if err := m.readErr[h.Name]; err != nil {
		return nil, err
	}
	loc, name, _ := strings.Cut(h.ID, "/")
	for _, f := range m.locations[loc] {
		if f.name == name {
			return []byte(f.content), nil
		}
	}
	return nil, fmt.Errorf("%s: not found", h.ID)
}

func (m *memFiles) Move(_ context.Context, h model.FileHandle, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	files := m.locations[from]
	for i, f := range files {
		if f.name == h.Name {
			m.locations[from] = append(files[:i:i], files[i+1:]...)
			m.locations[to] = append(m.locations[to], f)
			return nil
		}
	}
	return fmt.Errorf("%s not in %s", h.Name, from)
}

// memTables is an in-memory TabularStore; each table is header + rows.
type memTables struct {
	mu        sync.Mutex
	tables    map[string][][]string
	appendErr error
	appends   int
	maxWidth  map[string]int
}

func newMemTables() *memTables {
	return &memTables{tables: make(map[string][][]string), maxWidth: make(map[string]int)}
}

func (m *memTables) create(table string, header []string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append([][]string{header}, rows...)
}

func (m *memTables) rows(table string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tables[table]
	if len(t) == 0 {
		return nil
	}
	return t[1:]
}

func (m *memTables) Header(_ context.Context, table string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, store.ErrTableNotFound)
	}
	return t[0], nil
}

func (m *memTables) LastValue(_ context.Context, table, column string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, store.ErrTableNotFound)
	}
	col := store.ColumnIndex(t[0], column)
	if col < 0 {
		return nil, fmt.Errorf("%s: %w", column, store.ErrColumnMissing)
	}
	for i := len(t) - 1; i >= 1; i-- {
		if col < len(t[i]) && strings.TrimSpace(t[i][col]) != "" {
			return t[i][col], nil
		}
	}
	return nil, nil
}

func (m *memTables) Append(_ context.Context, table string, rows []model.RawRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.appendErr != nil {
		return m.appendErr
	}
	t, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("%s: %w", table, store.ErrTableNotFound)
	}
	if w := m.maxWidth[table]; w > 0 {
		for _, r := range rows {
			if len(r) > w {
				return fmt.Errorf("%d cells: %w", len(r), store.ErrRowRejected)
			}
		}
	}
	for _, r := range rows {
		t = append(t, append([]string(nil), r...))
	}
	m.tables[table] = t
	return nil
}

// flakyTables fails the first n calls of every method with a transient error.
type flakyTables struct {
	*memTables
	failures int
	calls    int
}

var errTransient = errors.New("503 service unavailable")

func (f *flakyTables) Header(ctx context.Context, table string) ([]string, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errTransient
	}
	return f.memTables.Header(ctx, table)
}

// unsureTables fails the first n appends with a transient error. With
// landed set the rows are written before the error comes back.
type unsureTables struct {
	*memTables
	failures int
	landed   bool
}

func (u *unsureTables) Append(ctx context.Context, table string, rows []model.RawRow) error {
	if u.failures == 0 {
		return u.memTables.Append(ctx, table, rows)
	}
	u.failures--
	if u.landed {
		if err := u.memTables.Append(ctx, table, rows); err != nil {
			return err
		}
	} else {
		u.memTables.mu.Lock()
		u.memTables.appends++
		u.memTables.mu.Unlock()
	}
	return errTransient
}
