package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/matcher"
	"github.com/iliyamo/fleet-parking-monitor/internal/metrics"
	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

// DetectionSource is polled once per tick for new raw detections.
type DetectionSource interface {
	Poll(ctx context.Context) ([]model.RawDetection, error)
}

// dropCounter is implemented by sources that discard detections when
// they cannot keep up.
type dropCounter interface {
	Dropped() int64
}

// RecordedPublisher fans out detections after they are durable.
type RecordedPublisher interface {
	PublishRecorded(ctx context.Context, d model.VehicleDetection) error
}

// Ingestor is the single logical writer of the detection log: it matches
// raw detections against the registry and appends them, one tick at a
// time.  A failed append is logged and skipped; it never stops the loop.
type Ingestor struct {
	Registry *registry.Registry
	Recorder Recorder
	Source   DetectionSource // only needed by Run
	// Publisher and Metrics are optional.
	Publisher RecordedPublisher
	Metrics   *metrics.Metrics
	Interval  time.Duration
}

// IngestResult summarises one batch.
type IngestResult struct {
	Recorded []model.VehicleDetection
	Matched  int
	Failed   int
	// Errs holds one entry per failed append, in input order.
	Errs []error
}

// Ingest matches and records each detection in order.  The matcher's
// decision replaces any spot hint the producer attached.
func (in *Ingestor) Ingest(ctx context.Context, raws []model.RawDetection) IngestResult {
	var res IngestResult
	for _, raw := range raws {
		spotID, _ := matcher.Match(raw.BBox, in.Registry)
		d, err := in.Recorder.Record(ctx, model.NewVehicleDetection(raw, spotID))
		if err != nil {
			res.Failed++
			res.Errs = append(res.Errs, err)
			if in.Metrics != nil {
				in.Metrics.PersistErrors.Add(1)
			}
			log.Printf("detector: skip detection from %s frame %d: %v", raw.CameraID, raw.FrameNumber, err)
			continue
		}
		res.Recorded = append(res.Recorded, d)
		if d.Occupied {
			res.Matched++
		}
		if in.Metrics != nil {
			in.Metrics.DetectionsStored.Add(1)
			if d.Occupied {
				in.Metrics.DetectionsMatched.Add(1)
			}
			in.Metrics.LastDetectionUnix.Store(d.Timestamp.Unix())
		}
		if in.Publisher != nil {
			if err := in.Publisher.PublishRecorded(ctx, d); err != nil && in.Metrics != nil {
				in.Metrics.PublishErrors.Add(1)
			}
		}
	}
	return res
}

// Tick polls the source once and ingests what it returned.  Source errors
// are logged and counted; only context cancellation is returned.
func (in *Ingestor) Tick(ctx context.Context) (IngestResult, error) {
	start := time.Now()
	defer func() {
		if in.Metrics != nil {
			in.Metrics.ObserveTick(time.Since(start))
			if dc, ok := in.Source.(dropCounter); ok {
				in.Metrics.SourceDropped.Store(dc.Dropped())
			}
		}
	}()

	raws, err := in.Source.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return IngestResult{}, ctx.Err()
		}
		if in.Metrics != nil {
			in.Metrics.SourceErrors.Add(1)
		}
		log.Printf("detector: poll failed: %v", err)
		return IngestResult{}, nil
	}
	if in.Metrics != nil {
		in.Metrics.DetectionsPolled.Add(uint64(len(raws)))
	}
	res := in.Ingest(ctx, raws)
	if len(raws) > 0 {
		log.Printf("detector: recorded %d detections (%d matched, %d failed)", len(res.Recorded), res.Matched, res.Failed)
	}
	return res, nil
}

// Run ticks every Interval until ctx is cancelled.  The first tick runs
// immediately.  Every detection is durable once recorded, so stopping
// between ticks loses nothing.
func (in *Ingestor) Run(ctx context.Context) error {
	if in.Interval <= 0 {
		return &ValidationError{Field: "interval", Reason: "must be positive"}
	}
	ticker := time.NewTicker(in.Interval)
	defer ticker.Stop()
	for {
		if _, err := in.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
