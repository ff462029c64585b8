package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgerfeed/internal/store"
)

func TestRetryPolicy_Do(t *testing.T) {
	p := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := p.Do(quietCtx(), "op", func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := p.Do(quietCtx(), "op", func() error {
			calls++
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		for _, perm := range []error{store.ErrTableNotFound, store.ErrColumnMissing, store.ErrRowRejected, context.Canceled} {
			calls := 0
			err := p.Do(quietCtx(), "op", func() error {
				calls++
				return fmt.Errorf("wrapped: %w", perm)
			})
			assert.ErrorIs(t, err, perm)
			assert.Equal(t, 1, calls, "%v", perm)
		}
	})

	t.Run("zero policy tries once", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{}.Do(quietCtx(), "op", func() error {
			calls++
			return errTransient
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(quietCtx())
		slow := RetryPolicy{Attempts: 5, BaseDelay: time.Hour}
		calls := 0
		start := time.Now()
		err := slow.Do(ctx, "op", func() error {
			calls++
			cancel()
			return errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), time.Minute)
	})
}

func TestProcessFile_RetriesTransientTableErrors(t *testing.T) {
	files := newMemFiles()
	files.put("inbox", "jan.csv", "2024-01-05,10.00\n")
	tables := newMemTables()
	tables.create("Checking", []string{"Date", "Amount"})
	flaky := &flakyTables{memTables: tables, failures: 2}

	engine := New(Options{Retry: RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}})
	res := engine.ProcessFile(quietCtx(), testFeed(files, flaky), handle("jan.csv"))

	require.NoError(t, res.Err)
	assert.Equal(t, StateArchived, res.State)
	assert.Equal(t, 3, flaky.calls)
}

func TestProcessFile_TransientErrorWithoutRetry(t *testing.T) {
	files := newMemFiles()
	files.put("inbox", "jan.csv", "2024-01-05,10.00\n")
	tables := newMemTables()
	tables.create("Checking", []string{"Date", "Amount"})
	flaky := &flakyTables{memTables: tables, failures: 1}

	res := New(Options{}).ProcessFile(quietCtx(), testFeed(files, flaky), handle("jan.csv"))

	assert.Equal(t, StateFailed, res.State)
	assert.True(t, errors.Is(res.Err, errTransient))
	assert.Equal(t, "remote_call", res.Class())
	assert.Equal(t, []string{"jan.csv"}, files.names("inbox"))
}

func TestProcessFile_AppendRetryAfterWriteLanded(t *testing.T) {
	files := newMemFiles()
	files.put("inbox", "jan.csv", "2024-01-05,10.00\n2024-01-06,7.50\n2024-01-07,3.25\n")
	tables := newMemTables()
	tables.create("Checking", []string{"Date", "Amount"}, []string{"2024-01-05", "10.00"})
	unsure := &unsureTables{memTables: tables, failures: 1, landed: true}

	engine := New(Options{Retry: RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}})
	res := engine.ProcessFile(quietCtx(), testFeed(files, unsure), handle("jan.csv"))

	require.NoError(t, res.Err)
	assert.Equal(t, StateArchived, res.State)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, tables.appends)
	assert.Equal(t, [][]string{
		{"2024-01-05", "10.00"},
		{"2024-01-06", "7.50"},
		{"2024-01-07", "3.25"},
	}, tables.rows("Checking"))
	assert.Equal(t, []string{"jan.csv"}, files.names("done"))
}

func TestProcessFile_AppendRetryAfterWriteLost(t *testing.T) {
	files := newMemFiles()
	files.put("inbox", "jan.csv", "2024-01-05,10.00\n2024-01-06,7.50\n")
	tables := newMemTables()
	tables.create("Checking", []string{"Date", "Amount"}, []string{"2024-01-05", "10.00"})
	unsure := &unsureTables{memTables: tables, failures: 1}

	engine := New(Options{Retry: RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}})
	res := engine.ProcessFile(quietCtx(), testFeed(files, unsure), handle("jan.csv"))

	require.NoError(t, res.Err)
	assert.Equal(t, StateArchived, res.State)
	assert.Equal(t, 2, tables.appends)
	assert.Equal(t, [][]string{{"2024-01-05", "10.00"}, {"2024-01-06", "7.50"}}, tables.rows("Checking"))
}

func TestProcessFile_AppendNotRetriedWithoutPolicy(t *testing.T) {
	files := newMemFiles()
	files.put("inbox", "jan.csv", "2024-01-06,7.50\n")
	tables := newMemTables()
	tables.create("Checking", []string{"Date", "Amount"}, []string{"2024-01-05", "10.00"})
	unsure := &unsureTables{memTables: tables, failures: 1, landed: true}

	res := New(Options{}).ProcessFile(quietCtx(), testFeed(files, unsure), handle("jan.csv"))

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, errTransient)
	assert.Equal(t, 1, tables.appends)
	assert.Equal(t, []string{"jan.csv"}, files.names("inbox"))
}
