package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type detailBody struct {
	Detail string `json:"detail"`
}

// Status maps an error onto its HTTP status code and response body.
func Status(err error) (int, interface{}) {
	var (
		verr *ValidationError
		perr *ParseError
		derr *detailError
		herr *echo.HTTPError
	)
	switch {
	case errors.As(err, &perr):
		return http.StatusBadRequest, detailBody{Detail: perr.Error()}
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Fields
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, detailBody{Detail: "Not found."}
	case errors.As(err, &derr) && errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, detailBody{Detail: derr.detail}
	case errors.As(err, &derr) && errors.Is(err, ErrForbidden):
		return http.StatusForbidden, detailBody{Detail: derr.detail}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, detailBody{Detail: "Request timed out."}
	case errors.As(err, &herr):
		msg, ok := herr.Message.(string)
		if !ok {
			msg = http.StatusText(herr.Code)
		}
		return herr.Code, detailBody{Detail: msg}
	}
	return http.StatusInternalServerError, detailBody{Detail: "internal server error"}
}

// Handler renders errors returned by handlers and middleware. Server-side
// failures are logged; client errors are not.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Status(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
