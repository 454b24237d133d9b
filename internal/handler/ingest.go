package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-parking-monitor/internal/middleware"
	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/service"
	"github.com/iliyamo/fleet-parking-monitor/internal/source"
)

// MaxIngestBatch bounds the number of detections per POST.
const MaxIngestBatch = 500

// IngestHandler lets camera agents push detections over HTTP.  Requests
// arrive through JWTAuth, and every detection must name the camera the
// token was issued to.
type IngestHandler struct {
	Ingestor *service.Ingestor
}

// NewIngestHandler panics on a nil ingestor.
func NewIngestHandler(in *service.Ingestor) *IngestHandler {
	if in == nil {
		panic("nil ingestor passed to NewIngestHandler")
	}
	return &IngestHandler{Ingestor: in}
}

// Create handles POST /v1/detections.  The body is one detection object or
// an array of them.  Detections are matched and appended in order; a
// partial failure still returns 201 with the failed count, and 503 is
// returned only when nothing could be stored.
func (h *IngestHandler) Create(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	raws, err := source.Decode(body, time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if len(raws) > MaxIngestBatch {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "too many detections in one request"})
	}
	camera, _ := c.Get(middleware.CtxCameraID).(string)
	for _, r := range raws {
		if r.CameraID != camera {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "camera_id does not match token"})
		}
	}

	res := h.Ingestor.Ingest(c.Request().Context(), raws)
	if len(res.Recorded) == 0 && res.Failed > 0 {
		return writeError(c, errors.Join(res.Errs...))
	}
	recorded := res.Recorded
	if recorded == nil {
		recorded = []model.VehicleDetection{}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"recorded": recorded,
		"matched":  res.Matched,
		"failed":   res.Failed,
	})
}
