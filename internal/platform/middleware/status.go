package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/medoffice/practice/internal/platform/apierror"
)

// statusOf reports the status the client will see. Errors are rendered by the
// HTTP error handler after the middleware chain unwinds, so the response
// status is not yet set when next returns an error.
func statusOf(c echo.Context, err error) int {
	if err != nil && !c.Response().Committed {
		code, _ := apierror.Status(err)
		return code
	}
	return c.Response().Status
}
