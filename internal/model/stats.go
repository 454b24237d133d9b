package model

import "time"

// CurrentStats is the live snapshot served by GET /stats.
type CurrentStats struct {
	Timestamp        time.Time `json:"timestamp"`
	TotalSpots       int       `json:"total_spots"`
	OccupiedSpots    int       `json:"occupied_spots"`
	AvailableSpots   int       `json:"available_spots"`
	OccupancyRate    float64   `json:"occupancy_rate"`
	RecentDetections int       `json:"recent_detections"`
}

// SpotStatusEntry is one row of GET /spots: a registry spot joined with its
// most recent live detection, if any.  VehicleType and Confidence are nil
// when CurrentlyOccupied is false.
type SpotStatusEntry struct {
	ID                string       `json:"id"`
	X1                float64      `json:"x1"`
	Y1                float64      `json:"y1"`
	X2                float64      `json:"x2"`
	Y2                float64      `json:"y2"`
	Status            SpotStatus   `json:"status"`
	LastUpdated       *time.Time   `json:"last_updated"`
	CurrentlyOccupied bool         `json:"currently_occupied"`
	VehicleType       *VehicleType `json:"vehicle_type"`
	Confidence        *float64     `json:"confidence"`
}

// HistoryBucket is one hour of GET /history/:hours.
type HistoryBucket struct {
	Timestamp     time.Time `json:"timestamp"`
	OccupiedSpots int       `json:"occupied_spots"`
	TotalSpots    int       `json:"total_spots"`
	OccupancyRate float64   `json:"occupancy_rate"`
}

// HourSpots lists the distinct spots seen occupied during one UTC hour, as
// produced by a detection store before the registry and rates are applied.
type HourSpots struct {
	Hour    time.Time
	SpotIDs []string
}
