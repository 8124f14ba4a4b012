package scheduling

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
	"github.com/medoffice/practice/internal/platform/wire"
)

const invalidBoundMessage = "Enter a valid date."

// FilterFromContext reads id, patient, start_after, start_before and
// ordering from the query string.
func FilterFromContext(c echo.Context) (Filter, error) {
	v := apierror.NewValidation()
	f := Filter{Ordering: c.QueryParam("ordering")}

	var err error
	if f.ID, err = wire.QueryID(c, "id"); err != nil {
		_ = v.Merge(err)
	}
	if f.PatientID, err = wire.QueryID(c, "patient"); err != nil {
		_ = v.Merge(err)
	}
	f.StartAfter = queryBound(v, c, "start_after", false)
	f.StartBefore = queryBound(v, c, "start_before", true)

	if err := v.Err(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func queryBound(v *apierror.ValidationError, c echo.Context, name string, endOfDay bool) *time.Time {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	t, ok := ParseBound(raw, endOfDay)
	if !ok {
		v.Add(name, invalidBoundMessage)
		return nil
	}
	return &t
}

// ParseBound reads a range bound. A bare date (MM/DD/YYYY or YYYY-MM-DD)
// covers the whole UTC day: it starts at midnight, or for an upper bound ends
// at the last microsecond of the day. Anything else must be a timestamp.
func ParseBound(raw string, endOfDay bool) (time.Time, bool) {
	if d, ok := wire.ParseDate(raw); ok {
		t := d.Time()
		if endOfDay {
			t = t.Add(24*time.Hour - time.Microsecond)
		}
		return t, true
	}
	return wire.ParseTimestamp(raw)
}
