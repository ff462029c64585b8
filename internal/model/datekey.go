package model

import (
	"strconv"
	"time"
)

// DateKey is a calendar date encoded as the integer YYYYMMDD.
type DateKey int

// NoDate is the sentinel for "no usable date". It orders before every real date.
const NoDate DateKey = 0

// DateKeyOf returns the key for t's calendar date in t's own location.
func DateKeyOf(t time.Time) DateKey {
	y, m, d := t.Date()
	return DateKey(y*10000 + int(m)*100 + d)
}

// IsZero reports whether k is the sentinel.
func (k DateKey) IsZero() bool { return k == NoDate }

func (k DateKey) String() string {
	return strconv.Itoa(int(k))
}
