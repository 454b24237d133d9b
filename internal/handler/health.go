package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health pings the detection store.  Load balancers treat anything but 200
// as unhealthy.
func (h *OccupancyHandler) Health(c echo.Context) error {
	if err := h.Svc.Health(c.Request().Context()); err != nil {
		c.Logger().Errorf("health: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
