package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// dateLayouts are tried in order for strings that are not plain YYYY-MM-DD.
// Bare 8-digit forms are not accepted; they are indistinguishable from
// amounts and reference numbers.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"2006/1/2",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Mon Jan 2 2006",
	"Mon, Jan 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
}

// Normalizer turns cell values into comparable DateKeys in one time zone.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer creates a Normalizer for loc. A nil loc means UTC.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Location returns the zone dates are evaluated in.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Key returns the DateKey of v, or model.NoDate when v holds no usable date.
// It never fails.
func (n *Normalizer) Key(v any) model.DateKey {
	switch x := v.(type) {
	case nil:
		return model.NoDate
	case time.Time:
		if x.IsZero() {
			return model.NoDate
		}
		return model.DateKeyOf(x.In(n.loc))
	case *time.Time:
		if x == nil {
			return model.NoDate
		}
		return n.Key(*x)
	case string:
		return n.keyOfString(x)
	case []byte:
		return n.keyOfString(string(x))
	default:
		return n.keyOfString(fmt.Sprint(x))
	}
}

func (n *Normalizer) keyOfString(s string) model.DateKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.NoDate
	}
	if isoDate.MatchString(s) {
		k, err := strconv.Atoi(strings.ReplaceAll(s, "-", ""))
		if err != nil {
			return model.NoDate
		}
		return model.DateKey(k)
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, n.loc)
		if err == nil {
			return model.DateKeyOf(t.In(n.loc))
		}
	}
	return model.NoDate
}
