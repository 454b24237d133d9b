package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// ErrMalformed marks a message that cannot be turned into a detection.
var ErrMalformed = errors.New("malformed detection")

// wireDetection accepts both the nested bbox form and the flat
// bbox_x/bbox_y/bbox_width/bbox_height form written by the camera agents.
type wireDetection struct {
	Timestamp     string      `json:"timestamp"`
	CameraID      string      `json:"camera_id"`
	FrameNumber   int64       `json:"frame_number"`
	VehicleType   string      `json:"vehicle_type"`
	Confidence    float64     `json:"confidence"`
	BBox          *model.BBox `json:"bbox"`
	BBoxX         float64     `json:"bbox_x"`
	BBoxY         float64     `json:"bbox_y"`
	BBoxWidth     float64     `json:"bbox_width"`
	BBoxHeight    float64     `json:"bbox_height"`
	ParkingSpotID *string     `json:"parking_spot_id"`
}

func (w wireDetection) raw(now time.Time) (model.RawDetection, error) {
	d := model.RawDetection{
		CameraID:      w.CameraID,
		FrameNumber:   w.FrameNumber,
		VehicleType:   model.ParseVehicleType(w.VehicleType),
		Confidence:    w.Confidence,
		ParkingSpotID: w.ParkingSpotID,
	}
	if w.BBox != nil {
		d.BBox = *w.BBox
	} else {
		d.BBox = model.BBox{X: w.BBoxX, Y: w.BBoxY, Width: w.BBoxWidth, Height: w.BBoxHeight}
	}
	if w.Timestamp == "" {
		d.Timestamp = now.UTC()
	} else {
		ts, err := model.ParseTimestamp(w.Timestamp)
		if err != nil {
			return d, fmt.Errorf("%w: timestamp %q", ErrMalformed, w.Timestamp)
		}
		d.Timestamp = ts
	}
	if err := Check(d); err != nil {
		return d, err
	}
	return d, nil
}

// Check enforces the value ranges of a raw detection.
func Check(d model.RawDetection) error {
	switch {
	case d.CameraID == "":
		return fmt.Errorf("%w: camera_id is required", ErrMalformed)
	case d.Confidence < 0 || d.Confidence > 1:
		return fmt.Errorf("%w: confidence %g outside [0,1]", ErrMalformed, d.Confidence)
	case d.BBox.Width < 0 || d.BBox.Height < 0:
		return fmt.Errorf("%w: negative bbox size", ErrMalformed)
	case d.FrameNumber < 0:
		return fmt.Errorf("%w: negative frame_number", ErrMalformed)
	}
	return nil
}

// Decode parses a message body holding one detection object or an array of
// them.  Missing timestamps are filled with now.
func Decode(body []byte, now time.Time) ([]model.RawDetection, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	var wires []wireDetection
	if body[0] == '[' {
		if err := json.Unmarshal(body, &wires); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var w wireDetection
		if err := json.Unmarshal(body, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		wires = []wireDetection{w}
	}
	out := make([]model.RawDetection, 0, len(wires))
	for i, w := range wires {
		d, err := w.raw(now)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
