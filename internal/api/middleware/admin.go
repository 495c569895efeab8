package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminKey gates operational endpoints (reconciliation) behind a shared key
// supplied in the X-Admin-Key header. An empty configured key disables the
// endpoints entirely.
func AdminKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "admin endpoints disabled"})
			}
			supplied := c.Request().Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
