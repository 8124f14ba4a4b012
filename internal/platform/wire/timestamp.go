package wire

import (
	"encoding/json"
	"strings"
	"time"
)

// TimestampFormatMessage is reported for a timestamp no layout accepts.
const TimestampFormatMessage = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."

// Timestamps without an offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// Timestamp is an instant decoded from ISO 8601 text. Like Date, bad input
// is recorded rather than returned as a decode error.
type Timestamp struct {
	t       time.Time
	invalid bool
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{t: t} }

func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (ts Timestamp) Time() time.Time { return ts.t }
func (ts Timestamp) Valid() bool     { return !ts.invalid }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.t.UTC().Format(time.RFC3339Nano))
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = Timestamp{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		ts.invalid = true
		return nil
	}
	t, ok := ParseTimestamp(s)
	if !ok {
		ts.invalid = true
		return nil
	}
	ts.t = t
	return nil
}
