package jsonfile

import (
	"encoding/json"
	"fmt"
	"time"
)

// Time is an ISO-8601 timestamp that also accepts the zone-less
// microsecond form written by older versions of the session and log files.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Now returns the current time truncated to microseconds.
func Now() Time {
	return Time{time.Now().Truncate(time.Microsecond)}
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// MarshalYAML lets YAML exports render the timestamp as a scalar.
func (t Time) MarshalYAML() (any, error) {
	return t.Format(time.RFC3339Nano), nil
}
