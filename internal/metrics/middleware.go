package metrics

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Middleware returns echo middleware that records HTTP metrics. Requests are
// labelled by route template so unknown paths share one series.
func Middleware(reg *Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = errorStatus(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			reg.RecordRequest(c.Request().Method, path, status, time.Since(start).Seconds())
			return err
		}
	}
}

func errorStatus(err error) int {
	type coder interface{ StatusCode() int }
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	if sc, ok := err.(coder); ok {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
