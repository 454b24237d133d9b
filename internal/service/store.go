// Package service holds the occupancy read model and the ingestion loop.
// Both depend on the small interfaces below rather than on a concrete
// backing store, so the SQL table and the JSONL journal are interchangeable.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// Recorder appends a matched detection to the durable log and returns it
// with its sequence id.  Implementations never modify existing entries.
type Recorder interface {
	Record(ctx context.Context, d model.VehicleDetection) (model.VehicleDetection, error)
}

// DetectionStore is the read side of the detection log.  Every "since"
// bound is exclusive.
type DetectionStore interface {
	Ping(ctx context.Context) error
	CountSince(ctx context.Context, since time.Time) (int, error)
	LatestBySpotSince(ctx context.Context, since time.Time) (map[string]model.VehicleDetection, error)
	OccupiedSpotsByHourSince(ctx context.Context, since time.Time) ([]model.HourSpots, error)
	Recent(ctx context.Context, limit int) ([]model.VehicleDetection, error)
	GetByID(ctx context.Context, id int64) (model.VehicleDetection, error)
}
