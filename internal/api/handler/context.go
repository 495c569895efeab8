package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ctxIdentityID extracts the identity id injected by the Auth middleware.
// An empty id means the middleware did not run or the token carried no
// subject; either way the request cannot be attributed to a user.
func ctxIdentityID(c echo.Context) (string, error) {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return uid, nil
}
