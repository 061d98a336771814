package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Preflight returns a pre-routing middleware that hands every OPTIONS request
// to h, whatever its path. Register it with (*echo.Echo).Pre so that Echo's
// router never answers OPTIONS with 404/405 or its own 204.
func Preflight(h echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return h(c)
			}
			return next(c)
		}
	}
}
