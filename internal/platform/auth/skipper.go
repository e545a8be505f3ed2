package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// PublicPathSkipper returns true for requests on infrastructure endpoints.
func PublicPathSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
