package http

import "github.com/labstack/echo/v4"

// Handler mounts a set of routes on the server.
// RegisterRoutes is called once, after the global middleware chain is installed.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
