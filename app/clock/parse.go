package clock

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var compactTime = regexp.MustCompile(`(\d{1,2})(\d{2})(am|pm)`)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInstant reads an absolute timestamp or natural language such as
// "friday 5pm" or "in 2 hours". Relative input is resolved against c in loc.
// Empty input returns the zero time and no error.
func ParseInstant(input string, c Clock, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}

	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "today ", "today at ")
	s = compactTime.ReplaceAllString(s, "$1:$2 $3")

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, c.Now().In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not recognize time %q", input)
	}
	return r.Time.UTC(), nil
}
