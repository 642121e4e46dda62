package remote

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is fixed-width UTC with millisecond precision, so ordering
// documents by the raw text of a timestamp field is chronological.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Time is a timestamp field of a stored document.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Millisecond)}
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(TimeLayout) + `"`), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// calendar dates such as a log's ascent day
		day, dayErr := time.Parse(time.DateOnly, s)
		if dayErr != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		parsed = day
	}
	t.Time = parsed.UTC()
	return nil
}
