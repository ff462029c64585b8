package model

import "strings"

// ContentTypeCSV is the MIME type file stores report for CSV exports.
const ContentTypeCSV = "text/csv"

// FileHandle identifies one entry returned by a file store listing.
type FileHandle struct {
	ID          string // store-specific key (path, object key)
	Name        string
	ContentType string
}

// IsCSV reports whether the file looks like a CSV export, by declared
// content type or by name suffix.
func (h FileHandle) IsCSV() bool {
	ct := strings.ToLower(strings.TrimSpace(h.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == ContentTypeCSV {
		return true
	}
	return strings.HasSuffix(strings.ToLower(h.Name), ".csv")
}
