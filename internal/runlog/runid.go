package runlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatRunID returns a run ID like "20250115-003".
func FormatRunID(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%03d", day.Format("20060102"), seq)
}

// ParseRunID parses "20250115-003" into its day and sequence number.
func ParseRunID(id string) (day string, seq int, err error) {
	day, s, ok := strings.Cut(id, "-")
	if !ok || len(day) != 8 {
		return "", 0, fmt.Errorf("invalid run ID format: %q", id)
	}
	if _, err := strconv.Atoi(day); err != nil {
		return "", 0, fmt.Errorf("invalid day in run ID %q: %w", id, err)
	}
	seq, err = strconv.Atoi(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid sequence in run ID %q: %w", id, err)
	}
	return day, seq, nil
}

// NextRunID returns the first unused run ID for now's day, given the entries
// already in the log. Malformed IDs are ignored.
func NextRunID(existing []Entry, now time.Time) string {
	today := now.Format("20060102")
	last := 0
	for _, e := range existing {
		day, seq, err := ParseRunID(e.RunID)
		if err != nil || day != today {
			continue
		}
		last = max(last, seq)
	}
	return FormatRunID(now, last+1)
}
