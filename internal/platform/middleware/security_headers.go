package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders hardens every response. The server only emits JSON and
// the prometheus text format, so the content policy denies everything.
//
// Anything under /api carries patient data or depends on the caller, so it
// must never be stored by a cache and varies by credentials and tenant.
// Probes (/health, /metrics) may be cached but must be revalidated.
//
// hsts is off in development where the server runs on plain http.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			if isAPIPath(c.Request().URL.Path) {
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
				h.Add("Vary", "Authorization")
				h.Add("Vary", "X-Tenant-ID")
			} else {
				h.Set("Cache-Control", "no-cache")
			}
			return next(c)
		}
	}
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
