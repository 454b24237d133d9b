// Package queue publishes domain events to RabbitMQ.  Publishing is best
// effort: failures are logged and returned, and callers on the ingestion
// path ignore them so the durable log stays the source of truth.
package queue

import (
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// DetectionRecordedEvent is published after a detection has been appended
// to the log.  It carries the full record so downstream consumers (alerts,
// dashboards, analytics) need not query the store.
type DetectionRecordedEvent struct {
	EventID       string            `json:"event_id"`
	DetectionID   int64             `json:"detection_id"`
	Timestamp     time.Time         `json:"timestamp"`
	CameraID      string            `json:"camera_id"`
	FrameNumber   int64             `json:"frame_number"`
	VehicleType   model.VehicleType `json:"vehicle_type"`
	Confidence    float64           `json:"confidence"`
	BBox          model.BBox        `json:"bbox"`
	ParkingSpotID *string           `json:"parking_spot_id"`
	Occupied      bool              `json:"occupied"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

// NewDetectionRecordedEvent builds the event for d.  eventID should be
// unique per publish; recordedAt is the ingestion time.
func NewDetectionRecordedEvent(eventID string, d model.VehicleDetection, recordedAt time.Time) DetectionRecordedEvent {
	return DetectionRecordedEvent{
		EventID:       eventID,
		DetectionID:   d.ID,
		Timestamp:     d.Timestamp,
		CameraID:      d.CameraID,
		FrameNumber:   d.FrameNumber,
		VehicleType:   d.VehicleType,
		Confidence:    d.Confidence,
		BBox:          d.BBox,
		ParkingSpotID: d.ParkingSpotID,
		Occupied:      d.Occupied,
		RecordedAt:    recordedAt.UTC(),
	}
}
