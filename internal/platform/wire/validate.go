package wire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/medoffice/practice/internal/platform/apierror"
)

const (
	MsgRequired = "This field is required."
	MsgBlank    = "This field may not be blank."
)

// RequiredText trims s and records a message on v when it is missing, blank
// or longer than max characters. A max of 0 means unbounded.
func RequiredText(v *apierror.ValidationError, field string, s *string, max int) string {
	if s == nil {
		v.Add(field, MsgRequired)
		return ""
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		v.Add(field, MsgBlank)
		return ""
	}
	checkLength(v, field, t, max)
	return t
}

// OptionalText trims s, keeping nil as nil. Blank values are allowed.
func OptionalText(v *apierror.ValidationError, field string, s *string, max int) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	checkLength(v, field, t, max)
	return &t
}

// BlankToNull trims s and treats an empty result as absent.
func BlankToNull(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func checkLength(v *apierror.ValidationError, field, s string, max int) {
	if max > 0 && utf8.RuneCountInString(s) > max {
		v.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
}

// InvalidPK is the message for an id that does not resolve.
func InvalidPK(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}
