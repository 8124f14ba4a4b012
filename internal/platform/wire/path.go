package wire

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
)

// PathID parses the ":id" route parameter. An id that is not a positive
// integer cannot name a record, so it is reported as not found.
func PathID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("path id %q: %w", raw, apierror.ErrNotFound)
	}
	return id, nil
}

// QueryID parses an optional integer filter such as "?patient=5". An empty
// value means the filter is not applied.
func QueryID(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apierror.Field(name, "Enter a number.")
	}
	return &id, nil
}
