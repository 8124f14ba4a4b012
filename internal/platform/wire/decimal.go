package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal is a fixed-point number decoded from a JSON number or a numeric
// string. Malformed input is recorded rather than returned so Check can
// report it against the field.
type Decimal struct {
	text    string
	value   decimal.Decimal
	invalid bool
}

func (d Decimal) String() string { return d.text }

func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*d = Decimal{invalid: true}
			return nil
		}
		s = str
	}
	*d = ParseDecimal(s)
	return nil
}

// ParseDecimal builds a Decimal from plain decimal text. Exponent notation
// is not a valid number here.
func ParseDecimal(s string) Decimal {
	s = strings.TrimSpace(s)
	d := Decimal{text: s}
	if strings.ContainsAny(s, "eE") {
		d.invalid = true
		return d
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		d.invalid = true
		return d
	}
	d.value = v
	return d
}

// digits returns the significant digit count and the fractional digit
// count of d as written, trailing zeros included.
func (d Decimal) digits() (total, places int) {
	exp := int(d.value.Exponent())
	if exp >= 0 {
		return d.value.NumDigits() + exp, 0
	}
	places = -exp
	total = d.value.NumDigits()
	if d.value.IsZero() || places > total {
		total = places
	}
	return total, places
}

// Check validates d against a NUMERIC(maxDigits, places) column and returns
// the message to report, or "" when the value fits.
func (d Decimal) Check(maxDigits, places int) string {
	if d.invalid {
		return "A valid number is required."
	}
	total, frac := d.digits()
	switch {
	case total > maxDigits:
		return fmt.Sprintf("Ensure that there are no more than %d digits in total.", maxDigits)
	case frac > places:
		return fmt.Sprintf("Ensure that there are no more than %d decimal places.", places)
	case total-frac > maxDigits-places:
		return fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", maxDigits-places)
	}
	return ""
}

// Fixed renders a value that passed Check with exactly places fractional
// digits, the way NUMERIC(p, places) prints it.
func (d Decimal) Fixed(places int) string {
	if d.invalid {
		return d.text
	}
	return d.value.StringFixed(int32(places))
}
