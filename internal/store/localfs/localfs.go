// Package localfs implements store.FileStore over a local directory tree.
// Locations are directories relative to the store root.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

// Store reads and archives files below Root.
type Store struct {
	root string
}

// New creates a Store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) dir(location string) string {
	if filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(s.root, location)
}

// List returns the regular files directly inside location, sorted by name.
// A missing location lists as empty.
func (s *Store) List(ctx context.Context, location string) ([]model.FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := s.dir(location)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading dir %s: %w", dir, err)
	}

	var files []model.FileHandle
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		files = append(files, model.FileHandle{
			ID:          filepath.Join(dir, e.Name()),
			Name:        e.Name(),
			ContentType: mime.TypeByExtension(filepath.Ext(e.Name())),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Read returns the file content.
func (s *Store) Read(ctx context.Context, h model.FileHandle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.ID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", h.Name, err)
	}
	return data, nil
}

// Move renames the file from location from into location to, creating the
// destination directory if needed. An existing file of the same name in the
// destination is never overwritten.
func (s *Store) Move(ctx context.Context, h model.FileHandle, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := filepath.Join(s.dir(from), h.Name)
	dstDir := s.dir(to)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	dst := filepath.Join(dstDir, h.Name)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("moving %s: %w", h.Name, fs.ErrExist)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to %s: %w", h.Name, to, err)
	}
	return nil
}
