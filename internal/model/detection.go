package model

import "time"

// VehicleType enumerates the vehicle classes a detector may report.
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleBus        VehicleType = "bus"
	VehicleTruck      VehicleType = "truck"
	VehicleUnknown    VehicleType = "unknown"
)

// KnownVehicleTypes lists the concrete classes, in the order the synthetic
// generator samples them.
var KnownVehicleTypes = []VehicleType{VehicleCar, VehicleMotorcycle, VehicleBus, VehicleTruck}

// ParseVehicleType maps free-form detector labels onto VehicleType.  Labels
// that are not recognised become VehicleUnknown.
func ParseVehicleType(s string) VehicleType {
	switch VehicleType(s) {
	case VehicleCar, VehicleMotorcycle, VehicleBus, VehicleTruck:
		return VehicleType(s)
	}
	return VehicleUnknown
}

// BBox is a detection bounding box with its origin at the top-left corner.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect converts the box into corner form.
func (b BBox) Rect() Rect {
	return Rect{X1: b.X, Y1: b.Y, X2: b.X + b.Width, Y2: b.Y + b.Height}
}

// RawDetection is what a detection source emits: a timestamped vehicle
// sighting that has not yet been matched against the spot registry.
// ParkingSpotID may carry a hint from the producer; the matcher decides.
type RawDetection struct {
	Timestamp     time.Time   `json:"timestamp"`
	CameraID      string      `json:"camera_id"`
	FrameNumber   int64       `json:"frame_number"`
	VehicleType   VehicleType `json:"vehicle_type"`
	Confidence    float64     `json:"confidence"`
	BBox          BBox        `json:"bbox"`
	ParkingSpotID *string     `json:"parking_spot_id,omitempty"`
}

// VehicleDetection is one immutable entry of the detection log.  Occupied
// is true exactly when ParkingSpotID is set; use NewVehicleDetection to keep
// the two in agreement.
//
// Fields:
//
//	ID            – sequence number assigned by the recorder.
//	Timestamp     – UTC time the vehicle was seen (not ingestion time).
//	CameraID      – camera that produced the frame.
//	FrameNumber   – per-camera frame counter, for debugging and ordering.
//	VehicleType   – car, motorcycle, bus, truck or unknown.
//	Confidence    – detector confidence in [0,1].
//	BBox          – bounding box in pixels.
//	ParkingSpotID – matched spot or nil.
//	Occupied      – ParkingSpotID != nil.
type VehicleDetection struct {
	ID            int64       `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	CameraID      string      `json:"camera_id"`
	FrameNumber   int64       `json:"frame_number"`
	VehicleType   VehicleType `json:"vehicle_type"`
	Confidence    float64     `json:"confidence"`
	BBox          BBox        `json:"bbox"`
	ParkingSpotID *string     `json:"parking_spot_id"`
	Occupied      bool        `json:"occupied"`
}

// NewVehicleDetection builds a log entry from a raw detection and the spot
// chosen by the matcher (empty means no spot).  The timestamp is normalised
// to UTC at millisecond precision, the resolution every backing store keeps.
func NewVehicleDetection(raw RawDetection, spotID string) VehicleDetection {
	d := VehicleDetection{
		Timestamp:   raw.Timestamp.UTC().Truncate(time.Millisecond),
		CameraID:    raw.CameraID,
		FrameNumber: raw.FrameNumber,
		VehicleType: raw.VehicleType,
		Confidence:  raw.Confidence,
		BBox:        raw.BBox,
	}
	if d.VehicleType == "" {
		d.VehicleType = VehicleUnknown
	}
	if spotID != "" {
		id := spotID
		d.ParkingSpotID = &id
		d.Occupied = true
	}
	return d
}

// SpotID returns the matched spot or "".
func (d VehicleDetection) SpotID() string {
	if d.ParkingSpotID == nil {
		return ""
	}
	return *d.ParkingSpotID
}

// timestampLayouts are accepted by ParseTimestamp.  Older producers wrote
// naive UTC ISO-8601 without a zone designator.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

// ParseTimestamp parses an RFC 3339 or zone-less ISO-8601 timestamp.
// Zone-less values are taken as UTC.  The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
