package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes are the probes load balancers hit without a token.
var publicRoutes = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper matches on the registered route path, not the raw URL, so
// "/health/" or "/health?x" on an unknown route still requires a token.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

// IsPublicRoute reports whether a read of path needs no credentials. Only
// GET and HEAD are public.
func IsPublicRoute(method, path string) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	return publicRoutes[path]
}
