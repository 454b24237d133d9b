package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

const hourMillis = int64(time.Hour / time.Millisecond)

// DetectionRepo is the table-backed detection log.  Rows are only ever
// inserted; nothing in this type updates or deletes.  Timestamps are stored
// as UTC unix milliseconds in detected_at_ms so the same statements run on
// MySQL and SQLite.
type DetectionRepo struct {
	db *sql.DB
}

// NewDetectionRepo returns a DetectionRepo bound to the given database.
// The vehicle_detections table must exist (see database.Migrate).
func NewDetectionRepo(db *sql.DB) *DetectionRepo { return &DetectionRepo{db: db} }

const detectionColumns = `id, detected_at_ms, camera_id, frame_number, vehicle_type, confidence,
	bbox_x, bbox_y, bbox_width, bbox_height, parking_spot_id, occupied`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(s rowScanner) (model.VehicleDetection, error) {
	var (
		d      model.VehicleDetection
		tsMs   int64
		vtype  string
		spotID sql.NullString
	)
	err := s.Scan(&d.ID, &tsMs, &d.CameraID, &d.FrameNumber, &vtype, &d.Confidence,
		&d.BBox.X, &d.BBox.Y, &d.BBox.Width, &d.BBox.Height, &spotID, &d.Occupied)
	if err != nil {
		return model.VehicleDetection{}, err
	}
	d.Timestamp = time.UnixMilli(tsMs).UTC()
	d.VehicleType = model.VehicleType(vtype)
	if spotID.Valid {
		id := spotID.String
		d.ParkingSpotID = &id
	}
	return d, nil
}

// Record appends d and returns it with the generated id.  The row's
// occupied flag is always derived from ParkingSpotID.
func (r *DetectionRepo) Record(ctx context.Context, d model.VehicleDetection) (model.VehicleDetection, error) {
	const q = `INSERT INTO vehicle_detections
		(detected_at_ms, camera_id, frame_number, vehicle_type, confidence,
		 bbox_x, bbox_y, bbox_width, bbox_height, parking_spot_id, occupied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var spot sql.NullString
	if d.ParkingSpotID != nil {
		spot = sql.NullString{String: *d.ParkingSpotID, Valid: true}
	}
	d.Occupied = spot.Valid
	d.Timestamp = d.Timestamp.UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx, q,
		d.Timestamp.UnixMilli(), d.CameraID, d.FrameNumber, string(d.VehicleType), d.Confidence,
		d.BBox.X, d.BBox.Y, d.BBox.Width, d.BBox.Height, spot, d.Occupied)
	if err != nil {
		return model.VehicleDetection{}, Wrap("append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.VehicleDetection{}, Wrap("append", err)
	}
	d.ID = id
	return d, nil
}

// Ping checks that the database is reachable.
func (r *DetectionRepo) Ping(ctx context.Context) error {
	return Wrap("ping", r.db.PingContext(ctx))
}

// CountSince counts all detections strictly after since.
func (r *DetectionRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM vehicle_detections WHERE detected_at_ms > ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, since.UnixMilli()).Scan(&n); err != nil {
		return 0, Wrap("count_since", err)
	}
	return n, nil
}

// LatestBySpotSince returns, per spot, the newest occupied detection
// strictly after since.  Ties on timestamp are broken by the higher id.
func (r *DetectionRepo) LatestBySpotSince(ctx context.Context, since time.Time) (map[string]model.VehicleDetection, error) {
	const q = `SELECT ` + detectionColumns + ` FROM vehicle_detections
	           WHERE detected_at_ms > ? AND occupied = 1 AND parking_spot_id IS NOT NULL
	           ORDER BY detected_at_ms, id`
	rows, err := r.db.QueryContext(ctx, q, since.UnixMilli())
	if err != nil {
		return nil, Wrap("latest_by_spot", err)
	}
	defer rows.Close()

	out := make(map[string]model.VehicleDetection)
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, Wrap("latest_by_spot", err)
		}
		// Rows arrive oldest first, so the last write per spot wins.
		out[d.SpotID()] = d
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap("latest_by_spot", err)
	}
	return out, nil
}

// OccupiedSpotsByHourSince groups occupied detections strictly after since
// by UTC hour and lists the distinct spots per hour.  Hours without
// detections are absent.  Results are in ascending hour order.
func (r *DetectionRepo) OccupiedSpotsByHourSince(ctx context.Context, since time.Time) ([]model.HourSpots, error) {
	const q = `SELECT DISTINCT detected_at_ms - (detected_at_ms % ?) AS hour_ms, parking_spot_id
	           FROM vehicle_detections
	           WHERE detected_at_ms > ? AND occupied = 1 AND parking_spot_id IS NOT NULL
	           ORDER BY hour_ms, parking_spot_id`
	rows, err := r.db.QueryContext(ctx, q, hourMillis, since.UnixMilli())
	if err != nil {
		return nil, Wrap("spots_by_hour", err)
	}
	defer rows.Close()

	var out []model.HourSpots
	for rows.Next() {
		var hourMs int64
		var spot string
		if err := rows.Scan(&hourMs, &spot); err != nil {
			return nil, Wrap("spots_by_hour", err)
		}
		hour := time.UnixMilli(hourMs).UTC()
		if n := len(out); n == 0 || !out[n-1].Hour.Equal(hour) {
			out = append(out, model.HourSpots{Hour: hour})
		}
		last := &out[len(out)-1]
		last.SpotIDs = append(last.SpotIDs, spot)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap("spots_by_hour", err)
	}
	return out, nil
}

// Recent returns up to limit detections, newest first.
func (r *DetectionRepo) Recent(ctx context.Context, limit int) ([]model.VehicleDetection, error) {
	const q = `SELECT ` + detectionColumns + ` FROM vehicle_detections
	           ORDER BY detected_at_ms DESC, id DESC
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, Wrap("recent", err)
	}
	defer rows.Close()

	out := make([]model.VehicleDetection, 0, limit)
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, Wrap("recent", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, Wrap("recent", err)
	}
	return out, nil
}

// GetByID returns a single detection or ErrDetectionNotFound.
func (r *DetectionRepo) GetByID(ctx context.Context, id int64) (model.VehicleDetection, error) {
	const q = `SELECT ` + detectionColumns + ` FROM vehicle_detections WHERE id = ?`
	d, err := scanDetection(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VehicleDetection{}, ErrDetectionNotFound
		}
		return model.VehicleDetection{}, Wrap("get", err)
	}
	return d, nil
}
