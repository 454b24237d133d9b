// Package handler exposes the occupancy API over HTTP.  Handlers parse and
// validate input, call the service layer and translate its errors into
// status codes; they hold no state of their own.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
	"github.com/iliyamo/fleet-parking-monitor/internal/repository"
	"github.com/iliyamo/fleet-parking-monitor/internal/service"
)

// writeError maps service and store errors onto HTTP responses:
// validation 400, unknown ids 404, store failures 503 (retryable) and
// everything else 500.
func writeError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error()})
	case errors.Is(err, registry.ErrSpotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "spot not found"})
	case errors.Is(err, repository.ErrDetectionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "detection not found"})
	case errors.Is(err, repository.ErrPersistence):
		c.Logger().Errorf("store: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store unavailable", "retryable": true})
	}
	c.Logger().Errorf("unexpected: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
