package wire

import (
	"bytes"
	"encoding/json"
	"time"
)

const (
	DateLayout    = "01/02/2006"
	ISODateLayout = "2006-01-02"
)

// DateFormatMessage is reported for a date that matches neither layout.
const DateFormatMessage = "Date has wrong format. Use one of these formats instead: MM/DD/YYYY, YYYY-MM-DD."

// Date is a calendar date rendered as MM/DD/YYYY. Input also accepts
// YYYY-MM-DD. An unparseable input decodes without error and is reported by
// Valid so the caller can attach the message to the right field.
type Date struct {
	t       time.Time
	invalid bool
	blank   bool
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts either supported layout.
func ParseDate(s string) (Date, bool) {
	for _, layout := range []string{DateLayout, ISODateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t: t}, true
		}
	}
	return Date{}, false
}

func (d Date) Time() time.Time { return d.t }
func (d Date) Valid() bool     { return !d.invalid }

// Blank reports an empty string on input, which callers treat as null.
func (d Date) Blank() bool { return d.blank }

func (d Date) String() string { return d.t.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	*d = Date{}
	if len(b) == 0 || b[0] != '"' {
		d.invalid = true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		d.invalid = true
		return nil
	}
	if len(bytes.TrimSpace([]byte(s))) == 0 {
		d.blank = true
		return nil
	}
	parsed, ok := ParseDate(s)
	if !ok {
		d.invalid = true
		return nil
	}
	*d = parsed
	return nil
}
