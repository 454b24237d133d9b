package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-parking-monitor/internal/service"
)

// OccupancyHandler serves the read-only dashboard endpoints.
type OccupancyHandler struct {
	Svc *service.OccupancyService
}

// NewOccupancyHandler panics on a nil service.
func NewOccupancyHandler(svc *service.OccupancyService) *OccupancyHandler {
	if svc == nil {
		panic("nil service passed to NewOccupancyHandler")
	}
	return &OccupancyHandler{Svc: svc}
}

// Stats handles GET /stats.
func (h *OccupancyHandler) Stats(c echo.Context) error {
	st, err := h.Svc.CurrentStats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Spots handles GET /spots: one entry per configured spot, always.
func (h *OccupancyHandler) Spots(c echo.Context) error {
	list, err := h.Svc.SpotStatusList(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Spot handles GET /spots/:id.
func (h *OccupancyHandler) Spot(c echo.Context) error {
	e, err := h.Svc.SpotStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// RecentDetections handles GET /detections/recent?limit=N (default 50).
func (h *OccupancyHandler) RecentDetections(c echo.Context) error {
	limit := service.DefaultRecentLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return writeError(c, &service.ValidationError{Field: "limit", Reason: "must be an integer"})
		}
		limit = n
	}
	dets, err := h.Svc.RecentDetections(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dets)
}

// Detection handles GET /detections/:id.
func (h *OccupancyHandler) Detection(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return writeError(c, &service.ValidationError{Field: "id", Reason: "must be an integer"})
	}
	d, err := h.Svc.Detection(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// History handles GET /history/:hours.
func (h *OccupancyHandler) History(c echo.Context) error {
	hours, err := strconv.Atoi(c.Param("hours"))
	if err != nil {
		return writeError(c, &service.ValidationError{Field: "hours", Reason: "must be an integer"})
	}
	buckets, err := h.Svc.History(c.Request().Context(), hours)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, buckets)
}
