package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass RequireUser: probes, metrics and the login flow itself.
var publicPaths = map[string]bool{
	"/health":      true,
	"/health/db":   true,
	"/metrics":     true,
	"/auth/login":  true,
	"/auth/logout": true,
}

// AuthSkipper lets through public paths and anything outside /api.
func AuthSkipper(c echo.Context) bool {
	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	return IsPublicPath(path) || !strings.HasPrefix(path, "/api/")
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
