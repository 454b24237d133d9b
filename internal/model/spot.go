package model

import "time"

// SpotStatus is the cached occupancy state of a parking spot.  It is
// derived from the detection log and never treated as authoritative.
type SpotStatus string

const (
	SpotFree     SpotStatus = "free"
	SpotOccupied SpotStatus = "occupied"
	SpotUnknown  SpotStatus = "unknown"
)

// Rect is an axis-aligned rectangle in the camera's pixel space.  A valid
// spot rectangle satisfies X1 < X2 and Y1 < Y2.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns X2-X1.
func (r Rect) Width() float64 { return r.X2 - r.X1 }

// Height returns Y2-Y1.
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// ParkingSpot describes one marked space of the lot.
//
// Fields:
//
//	ID          – stable key such as "A01".
//	Geometry    – rectangle covering the spot in the camera frame.
//	Status      – cached status (free, occupied, unknown).
//	LastUpdated – timestamp of the detection that last set Status (nil when never seen).
type ParkingSpot struct {
	ID          string     // parking_spots.id
	Geometry    Rect       // parking_spots.x1..y2
	Status      SpotStatus // derived
	LastUpdated *time.Time // derived
}
