package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems.  It returns a plain text "ok" with status 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Home greets API clients at the root path.
func Home(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to AI Data Pipeline API"})
}
