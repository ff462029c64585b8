// Package runlog keeps a CSV record of per-file import outcomes, one row per
// file per run, for reconciling the destination tables by hand.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/ledgerfeed/internal/importer"
)

// Entry is one row in the run log.
type Entry struct {
	RunID     string
	Timestamp time.Time
	Feed      string
	File      string // empty when the feed failed before any file was read
	State     string
	Class     string
	Rows      int
	Dropped   int
	Amount    string
	Reason    string
}

// Header is the CSV header of the run log.
const Header = "run_id,timestamp,feed,file,state,class,rows,dropped,amount,reason"

const (
	numFields    = 10
	colRunID     = 0
	colTimestamp = 1
	colFeed      = 2
	colFile      = 3
	colState     = 4
	colClass     = 5
	colRows      = 6
	colDropped   = 7
	colAmount    = 8
	colReason    = 9
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colRunID] = e.RunID
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colFeed] = e.Feed
	row[colFile] = e.File
	row[colState] = e.State
	row[colClass] = e.Class
	row[colRows] = strconv.Itoa(e.Rows)
	row[colDropped] = strconv.Itoa(e.Dropped)
	row[colAmount] = e.Amount
	row[colReason] = e.Reason
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	rows, err := strconv.Atoi(record[colRows])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rows %q: %w", record[colRows], err)
	}
	dropped, err := strconv.Atoi(record[colDropped])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing dropped %q: %w", record[colDropped], err)
	}

	return Entry{
		RunID:     record[colRunID],
		Timestamp: ts,
		Feed:      record[colFeed],
		File:      record[colFile],
		State:     record[colState],
		Class:     record[colClass],
		Rows:      rows,
		Dropped:   dropped,
		Amount:    record[colAmount],
		Reason:    record[colReason],
	}, nil
}

// FromReport flattens a run report into log entries stamped with runID and now.
func FromReport(report *importer.RunReport, runID string, now time.Time) []Entry {
	var entries []Entry
	for _, f := range report.Feeds {
		if f.Err != nil {
			entries = append(entries, Entry{
				RunID:     runID,
				Timestamp: now,
				Feed:      f.Feed,
				State:     string(importer.StateFailed),
				Class:     importer.Classify(f.Err),
				Reason:    f.Err.Error(),
			})
			continue
		}
		for _, r := range f.Files {
			e := Entry{
				RunID:     runID,
				Timestamp: now,
				Feed:      r.Feed,
				File:      r.File,
				State:     string(r.State),
				Class:     r.Class(),
				Rows:      r.Imported,
				Dropped:   r.Dropped,
				Reason:    r.Reason,
			}
			if r.State == importer.StateFailed {
				e.Rows = 0
			}
			if r.HasAmount && r.State != importer.StateFailed {
				e.Amount = r.Amount.StringFixed(2)
			}
			entries = append(entries, e)
		}
	}
	return entries
}

// Append writes entries to the CSV file at path, creating the file, its
// directory and the header if needed.
func Append(path string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating run log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return f.Close()
}

// Read returns all entries in the run log at path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
