package consensusdomain

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Timestamp is an optional instant. The zero value is "no timestamp", which
// orders before every parsed instant.
type Timestamp struct {
	t  time.Time
	ok bool
}

// At wraps a known instant.
func At(t time.Time) Timestamp {
	return Timestamp{t: t.UTC(), ok: true}
}

// ParseTimestamp never fails: anything it cannot read becomes the minimum
// sentinel.
func ParseTimestamp(raw string) Timestamp {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return At(t)
		}
	}
	return Timestamp{}
}

// Valid reports whether the timestamp holds a parsed instant.
func (ts Timestamp) Valid() bool { return ts.ok }

// Compare orders timestamps with the sentinel as the minimum. Two sentinels
// are equal.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case !ts.ok && !other.ok:
		return 0
	case !ts.ok:
		return -1
	case !other.ok:
		return 1
	}
	return ts.t.Compare(other.t)
}

// After reports whether ts is strictly later than other.
func (ts Timestamp) After(other Timestamp) bool { return ts.Compare(other) > 0 }

func (ts Timestamp) String() string {
	if !ts.ok {
		return ""
	}
	return ts.t.Format(time.RFC3339Nano)
}
