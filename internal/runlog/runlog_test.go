package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgerfeed/internal/importer"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		RunID:     "20250115-001",
		Timestamp: testTime,
		Feed:      "Checking",
		File:      "jan.csv",
		State:     "archived",
		Rows:      12,
		Amount:    "-104.50",
	}
}

func TestAppend_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run-log.csv")
	require.NoError(t, Append(path, []Entry{testEntry()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Header+"\n20250115-001,2025-01-15T10:30:00Z,Checking,jan.csv,archived,,12,0,-104.50,\n", string(data))
}

func TestAppend_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-log.csv")
	require.NoError(t, Append(path, []Entry{testEntry()}))

	e2 := testEntry()
	e2.File = "feb.csv"
	e2.State = "failed"
	e2.Class = "invalid_config"
	e2.Reason = "invalid config: Checking: table not found"
	require.NoError(t, Append(path, []Entry{e2}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "jan.csv", entries[0].File)
	assert.Equal(t, e2, entries[1])
}

func TestAppend_NothingToWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-log.csv")
	require.NoError(t, Append(path, nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no file for an empty run")
}

func TestRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-log.csv")
	original := testEntry()
	original.Reason = "file too short: 1 rows, 2 metadata rows to skip"
	require.NoError(t, Append(path, []Entry{original}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	got.Timestamp = original.Timestamp
	assert.Equal(t, original, got)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-log.csv")
	require.NoError(t, os.WriteFile(path, []byte(Header+"\n"), 0o644))

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	_, err := UnmarshalEntry([]string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 10 fields")

	row := MarshalEntry(testEntry())
	row[colRows] = "many"
	_, err = UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing rows")

	row = MarshalEntry(testEntry())
	row[colTimestamp] = "yesterday"
	_, err = UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing timestamp")
}

func TestFromReport(t *testing.T) {
	tableErr := fmt.Errorf("%w: Savings: table not found", importer.ErrInvalidConfig)
	listErr := fmt.Errorf("%w: listing cards: %w", importer.ErrRemoteCall, errors.New("access denied"))
	report := &importer.RunReport{Feeds: []importer.FeedResult{
		{Feed: "Checking", Files: []importer.FileResult{
			{Feed: "Checking", File: "jan.csv", State: importer.StateArchived, Imported: 3, Dropped: 1,
				HasAmount: true, Amount: decimal.RequireFromString("-12.5")},
			{Feed: "Checking", File: "short.csv", State: importer.StateSkipped, Reason: "file too short"},
		}},
		{Feed: "Savings", Files: []importer.FileResult{
			{Feed: "Savings", File: "s.csv", State: importer.StateFailed, Imported: 4, Err: tableErr, Reason: tableErr.Error(),
				HasAmount: true, Amount: decimal.RequireFromString("1")},
		}},
		{Feed: "Cards", Err: listErr},
	}}

	entries := FromReport(report, "20250115-002", testTime)
	require.Len(t, entries, 4)

	assert.Equal(t, Entry{RunID: "20250115-002", Timestamp: testTime, Feed: "Checking", File: "jan.csv",
		State: "archived", Rows: 3, Dropped: 1, Amount: "-12.50"}, entries[0])
	assert.Equal(t, "skipped", entries[1].State)
	assert.Equal(t, "file too short", entries[1].Reason)

	assert.Equal(t, "failed", entries[2].State)
	assert.Equal(t, "invalid_config", entries[2].Class)
	assert.Zero(t, entries[2].Rows)
	assert.Empty(t, entries[2].Amount)

	assert.Equal(t, "Cards", entries[3].Feed)
	assert.Empty(t, entries[3].File)
	assert.Equal(t, "remote_call", entries[3].Class)
	assert.Contains(t, entries[3].Reason, "access denied")
}
