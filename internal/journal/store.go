package journal

import (
	"container/heap"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/repository"
)

// The read side answers every query with one sequential pass over the file.

var errStop = errors.New("stop scan")

// Ping reports whether the log file can be opened for reading.
func (l *Log) Ping(ctx context.Context) error {
	err := l.Scan(ctx, func(model.VehicleDetection) error { return errStop })
	return l.scanErr("ping", err)
}

func (l *Log) scanErr(op string, err error) error {
	if err == nil || errors.Is(err, errStop) {
		return nil
	}
	if errors.Is(err, repository.ErrPersistence) {
		return err
	}
	return repository.Wrap(op, err)
}

// CountSince counts all detections strictly after since.
func (l *Log) CountSince(ctx context.Context, since time.Time) (int, error) {
	n := 0
	err := l.Scan(ctx, func(d model.VehicleDetection) error {
		if d.Timestamp.After(since) {
			n++
		}
		return nil
	})
	if err = l.scanErr("count_since", err); err != nil {
		return 0, err
	}
	return n, nil
}

// LatestBySpotSince returns the newest occupied detection per spot strictly
// after since.  On equal timestamps the later line wins.
func (l *Log) LatestBySpotSince(ctx context.Context, since time.Time) (map[string]model.VehicleDetection, error) {
	out := make(map[string]model.VehicleDetection)
	err := l.Scan(ctx, func(d model.VehicleDetection) error {
		if !d.Occupied || d.ParkingSpotID == nil || !d.Timestamp.After(since) {
			return nil
		}
		if prev, ok := out[*d.ParkingSpotID]; !ok || !d.Timestamp.Before(prev.Timestamp) {
			out[*d.ParkingSpotID] = d
		}
		return nil
	})
	if err = l.scanErr("latest_by_spot", err); err != nil {
		return nil, err
	}
	return out, nil
}

// OccupiedSpotsByHourSince buckets occupied detections strictly after
// since by UTC hour and lists the distinct spots per bucket, ascending by
// hour and by spot id within a bucket.
func (l *Log) OccupiedSpotsByHourSince(ctx context.Context, since time.Time) ([]model.HourSpots, error) {
	buckets := make(map[int64]map[string]struct{})
	err := l.Scan(ctx, func(d model.VehicleDetection) error {
		if !d.Occupied || d.ParkingSpotID == nil || !d.Timestamp.After(since) {
			return nil
		}
		key := d.Timestamp.Truncate(time.Hour).UnixMilli()
		set, ok := buckets[key]
		if !ok {
			set = make(map[string]struct{})
			buckets[key] = set
		}
		set[*d.ParkingSpotID] = struct{}{}
		return nil
	})
	if err = l.scanErr("spots_by_hour", err); err != nil {
		return nil, err
	}
	out := make([]model.HourSpots, 0, len(buckets))
	for k, set := range buckets {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, model.HourSpots{Hour: time.UnixMilli(k).UTC(), SpotIDs: ids})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out, nil
}

// newestFirst orders by timestamp, then id, descending.
func newestFirst(a, b model.VehicleDetection) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

// oldestHeap is a min-heap on (timestamp, id) used to keep the newest N.
type oldestHeap []model.VehicleDetection

func (h oldestHeap) Len() int           { return len(h) }
func (h oldestHeap) Less(i, j int) bool { return newestFirst(h[j], h[i]) }
func (h oldestHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *oldestHeap) Push(x any)        { *h = append(*h, x.(model.VehicleDetection)) }
func (h *oldestHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Recent returns up to limit detections, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.VehicleDetection, error) {
	if limit <= 0 {
		return []model.VehicleDetection{}, nil
	}
	h := &oldestHeap{}
	err := l.Scan(ctx, func(d model.VehicleDetection) error {
		if h.Len() < limit {
			heap.Push(h, d)
		} else if newestFirst(d, (*h)[0]) {
			(*h)[0] = d
			heap.Fix(h, 0)
		}
		return nil
	})
	if err = l.scanErr("recent", err); err != nil {
		return nil, err
	}
	out := []model.VehicleDetection(*h)
	sort.Slice(out, func(i, j int) bool { return newestFirst(out[i], out[j]) })
	return out, nil
}

// GetByID returns the detection on line id or repository.ErrDetectionNotFound.
func (l *Log) GetByID(ctx context.Context, id int64) (model.VehicleDetection, error) {
	var found *model.VehicleDetection
	err := l.Scan(ctx, func(d model.VehicleDetection) error {
		if d.ID == id {
			found = &d
			return errStop
		}
		return nil
	})
	if err = l.scanErr("get", err); err != nil {
		return model.VehicleDetection{}, err
	}
	if found == nil {
		return model.VehicleDetection{}, repository.ErrDetectionNotFound
	}
	return *found, nil
}
