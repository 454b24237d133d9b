package service

import (
	"context"
	"math"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

const (
	// LiveWindow is how far back a detection keeps a spot occupied.
	LiveWindow = 30 * time.Second
	// RecentWindow bounds the recent_detections figure of CurrentStats.
	RecentWindow = 60 * time.Second

	DefaultRecentLimit = 50
	MaxRecentLimit     = 1000
	// MaxHistoryHours caps /history to one year of buckets.
	MaxHistoryHours = 24 * 366
)

// OccupancyService answers time-windowed questions about the lot.  It only
// reads: the registry is static and the store is an append-only log, so
// every call works on whatever prefix of the log exists when it runs.
type OccupancyService struct {
	Registry *registry.Registry
	Store    DetectionStore
	// Clock returns "now"; tests replace it.
	Clock func() time.Time
}

// NewOccupancyService wires a service with the wall clock.
func NewOccupancyService(reg *registry.Registry, store DetectionStore) *OccupancyService {
	if reg == nil || store == nil {
		panic("nil dependency passed to NewOccupancyService")
	}
	return &OccupancyService{Registry: reg, Store: store, Clock: time.Now}
}

func (s *OccupancyService) now() time.Time { return s.Clock().UTC() }

// rate returns occupied/total as a percentage rounded to one decimal, 0 for
// an empty lot, clamped to [0,100].
func rate(occupied, total int) float64 {
	if total <= 0 || occupied <= 0 {
		return 0
	}
	if occupied > total {
		occupied = total
	}
	return math.Round(float64(occupied)/float64(total)*1000) / 10
}

// liveBySpot returns the newest detection per registered spot within the
// live window.  Detections for ids the registry does not know are dropped.
func (s *OccupancyService) liveBySpot(ctx context.Context, now time.Time) (map[string]model.VehicleDetection, error) {
	latest, err := s.Store.LatestBySpotSince(ctx, now.Add(-LiveWindow))
	if err != nil {
		return nil, err
	}
	for id := range latest {
		if _, err := s.Registry.Get(id); err != nil {
			delete(latest, id)
		}
	}
	return latest, nil
}

// Health pings the backing store.
func (s *OccupancyService) Health(ctx context.Context) error {
	return s.Store.Ping(ctx)
}

// CurrentStats summarises the live window.  OccupiedSpots counts distinct
// registered spots with a detection in the last 30s; RecentDetections counts
// every detection in the last 60s.
func (s *OccupancyService) CurrentStats(ctx context.Context) (model.CurrentStats, error) {
	now := s.now()
	live, err := s.liveBySpot(ctx, now)
	if err != nil {
		return model.CurrentStats{}, err
	}
	recent, err := s.Store.CountSince(ctx, now.Add(-RecentWindow))
	if err != nil {
		return model.CurrentStats{}, err
	}
	total := s.Registry.Len()
	occupied := len(live)
	return model.CurrentStats{
		Timestamp:        now,
		TotalSpots:       total,
		OccupiedSpots:    occupied,
		AvailableSpots:   total - occupied,
		OccupancyRate:    rate(occupied, total),
		RecentDetections: recent,
	}, nil
}

func statusEntry(spot model.ParkingSpot, live map[string]model.VehicleDetection) model.SpotStatusEntry {
	e := model.SpotStatusEntry{
		ID:     spot.ID,
		X1:     spot.Geometry.X1,
		Y1:     spot.Geometry.Y1,
		X2:     spot.Geometry.X2,
		Y2:     spot.Geometry.Y2,
		Status: model.SpotFree,
	}
	if d, ok := live[spot.ID]; ok {
		vt := d.VehicleType
		conf := d.Confidence
		ts := d.Timestamp
		e.Status = model.SpotOccupied
		e.CurrentlyOccupied = true
		e.VehicleType = &vt
		e.Confidence = &conf
		e.LastUpdated = &ts
	}
	return e
}

// SpotStatusList returns one entry per registered spot, in registry order,
// joined with that spot's newest live detection when there is one.
func (s *OccupancyService) SpotStatusList(ctx context.Context) ([]model.SpotStatusEntry, error) {
	live, err := s.liveBySpot(ctx, s.now())
	if err != nil {
		return nil, err
	}
	spots := s.Registry.All()
	out := make([]model.SpotStatusEntry, 0, len(spots))
	for _, spot := range spots {
		out = append(out, statusEntry(spot, live))
	}
	return out, nil
}

// SpotStatus returns the entry for one spot or registry.ErrSpotNotFound.
func (s *OccupancyService) SpotStatus(ctx context.Context, id string) (model.SpotStatusEntry, error) {
	spot, err := s.Registry.Get(id)
	if err != nil {
		return model.SpotStatusEntry{}, err
	}
	live, err := s.liveBySpot(ctx, s.now())
	if err != nil {
		return model.SpotStatusEntry{}, err
	}
	return statusEntry(spot, live), nil
}

// History returns one bucket per UTC hour that has occupied detections in
// the last hours hours, ascending.  Empty hours are omitted and hours == 0
// yields an empty list.  Rates use the current registry size.
func (s *OccupancyService) History(ctx context.Context, hours int) ([]model.HistoryBucket, error) {
	if hours < 0 {
		return nil, &ValidationError{Field: "hours", Reason: "must not be negative"}
	}
	if hours > MaxHistoryHours {
		return nil, &ValidationError{Field: "hours", Reason: "too large"}
	}
	out := []model.HistoryBucket{}
	if hours == 0 {
		return out, nil
	}
	now := s.now()
	rows, err := s.Store.OccupiedSpotsByHourSince(ctx, now.Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	total := s.Registry.Len()
	for _, r := range rows {
		occupied := 0
		for _, id := range r.SpotIDs {
			if _, err := s.Registry.Get(id); err == nil {
				occupied++
			}
		}
		if occupied == 0 {
			continue
		}
		out = append(out, model.HistoryBucket{
			Timestamp:     r.Hour.UTC(),
			OccupiedSpots: occupied,
			TotalSpots:    total,
			OccupancyRate: rate(occupied, total),
		})
	}
	return out, nil
}

// RecentDetections returns the newest limit detections, newest first.
// limit must be positive; values above MaxRecentLimit are clamped.
func (s *OccupancyService) RecentDetections(ctx context.Context, limit int) ([]model.VehicleDetection, error) {
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be a positive integer"}
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return s.Store.Recent(ctx, limit)
}

// Detection looks up one detection by sequence id.
func (s *OccupancyService) Detection(ctx context.Context, id int64) (model.VehicleDetection, error) {
	if id <= 0 {
		return model.VehicleDetection{}, &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return s.Store.GetByID(ctx, id)
}
