package source

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
	"github.com/iliyamo/fleet-parking-monitor/internal/matcher"
	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

func defaultRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Load(registry.DefaultLayout())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func TestSyntheticFrames(t *testing.T) {
	reg := defaultRegistry(t)
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 3 {
			return base.Add(-time.Minute) // clock steps backwards
		}
		return base.Add(time.Duration(calls) * time.Second)
	}
	gen := NewSynthetic(reg, SyntheticOptions{Seed: 42, Clock: clock})

	var last time.Time
	for frame := int64(0); frame < 50; frame++ {
		dets, err := gen.Poll(context.Background())
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if len(dets) < 2 || len(dets) > 8 {
			t.Fatalf("frame %d: %d detections, want 2..8", frame, len(dets))
		}
		seen := map[string]bool{}
		for _, d := range dets {
			if d.FrameNumber != frame {
				t.Fatalf("frame number = %d, want %d", d.FrameNumber, frame)
			}
			if d.CameraID != "main_camera" {
				t.Fatalf("camera = %q", d.CameraID)
			}
			if d.Timestamp.Before(last) {
				t.Fatalf("timestamp went backwards: %v < %v", d.Timestamp, last)
			}
			if d.Confidence < 0.6 || d.Confidence > 0.95 {
				t.Fatalf("confidence %v out of range", d.Confidence)
			}
			if r := d.Confidence * 1000; math.Abs(r-math.Round(r)) > 1e-6 {
				t.Fatalf("confidence %v has more than 3 decimals", d.Confidence)
			}
			if d.ParkingSpotID == nil {
				t.Fatal("synthetic detection without spot")
			}
			id := *d.ParkingSpotID
			if seen[id] {
				t.Fatalf("spot %s repeated within a frame", id)
			}
			seen[id] = true

			spot, err := reg.Get(id)
			if err != nil {
				t.Fatalf("unknown spot %s", id)
			}
			g := spot.Geometry
			if math.Abs(d.BBox.X-g.X1) > 10 || math.Abs(d.BBox.Y-g.Y1) > 10 {
				t.Fatalf("offset too large: %+v vs %+v", d.BBox, g)
			}
			if math.Abs(d.BBox.Width-g.Width()) > 20 || math.Abs(d.BBox.Height-g.Height()) > 20 {
				t.Fatalf("size jitter too large: %+v vs %+v", d.BBox, g)
			}
			if got, ok := matcher.Match(d.BBox, reg); !ok || got != id {
				t.Fatalf("matcher assigned %q (ok=%v), generator chose %s", got, ok, id)
			}
			switch d.VehicleType {
			case model.VehicleCar, model.VehicleMotorcycle, model.VehicleBus, model.VehicleTruck:
			default:
				t.Fatalf("vehicle type %q", d.VehicleType)
			}
		}
		last = dets[0].Timestamp
	}
}

func TestSyntheticReproducible(t *testing.T) {
	reg := defaultRegistry(t)
	clock := func() time.Time { return time.Unix(0, 0) }
	a := NewSynthetic(reg, SyntheticOptions{Seed: 7, Clock: clock})
	b := NewSynthetic(reg, SyntheticOptions{Seed: 7, Clock: clock})
	for i := 0; i < 5; i++ {
		da, _ := a.Poll(context.Background())
		db, _ := b.Poll(context.Background())
		if len(da) != len(db) {
			t.Fatalf("lengths differ: %d vs %d", len(da), len(db))
		}
		for j := range da {
			if *da[j].ParkingSpotID != *db[j].ParkingSpotID || da[j].BBox != db[j].BBox {
				t.Fatalf("frame %d item %d differs", i, j)
			}
		}
	}
}

func TestSyntheticCapsAtRegistrySize(t *testing.T) {
	reg, err := registry.Load([]registry.SpotConfig{{ID: "A01", X1: 0, Y1: 0, X2: 100, Y2: 100}})
	if err != nil {
		t.Fatal(err)
	}
	gen := NewSynthetic(reg, SyntheticOptions{MinVehicles: 3, MaxVehicles: 5, Seed: 1})
	dets, err := gen.Poll(context.Background())
	if err != nil || len(dets) != 1 {
		t.Fatalf("got %d, %v; want 1 detection", len(dets), err)
	}

	empty, _ := registry.Load(nil)
	dets, err = NewSynthetic(empty, SyntheticOptions{Seed: 1}).Poll(context.Background())
	if err != nil || len(dets) != 0 {
		t.Fatalf("empty registry: %d, %v", len(dets), err)
	}
}

func TestSyntheticClose(t *testing.T) {
	gen := NewSynthetic(defaultRegistry(t), SyntheticOptions{Seed: 1})
	_ = gen.Close()
	if _, err := gen.Poll(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestNewSelectsSource(t *testing.T) {
	reg := defaultRegistry(t)
	src, err := New(context.Background(), config.SourceConfig{Kind: config.SourceSynthetic, MinVehicles: 1, MaxVehicles: 1}, reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := src.(*Synthetic); !ok {
		t.Fatalf("got %T", src)
	}
	if _, err := New(context.Background(), config.SourceConfig{Kind: "webcam"}, reg); err == nil {
		t.Fatal("unknown kind should fail")
	}
}

func TestInboxDropsWhenFull(t *testing.T) {
	b := newInbox(2)
	for i := 0; i < 3; i++ {
		b.offer(model.RawDetection{FrameNumber: int64(i)})
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d", b.Dropped())
	}
	got, err := b.drain()
	if err != nil || len(got) != 2 || got[0].FrameNumber != 0 {
		t.Fatalf("drain = %+v, %v", got, err)
	}
	if got, _ := b.drain(); len(got) != 0 {
		t.Fatalf("second drain = %+v", got)
	}
	b.closed.Store(true)
	if _, err := b.drain(); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestInboxPutWaitsForRoom(t *testing.T) {
	b := newInbox(1)
	ctx := context.Background()
	if !b.put(ctx, model.RawDetection{FrameNumber: 0}) {
		t.Fatal("first put failed")
	}
	done := make(chan bool, 1)
	go func() { done <- b.put(ctx, model.RawDetection{FrameNumber: 1}) }()
	select {
	case <-done:
		t.Fatal("put returned while the inbox was full")
	case <-time.After(20 * time.Millisecond):
	}
	if got, _ := b.drain(); len(got) != 1 || got[0].FrameNumber != 0 {
		t.Fatalf("drain = %+v", got)
	}
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("put failed after drain")
		}
	case <-time.After(time.Second):
		t.Fatal("put still blocked after drain")
	}
	if b.Dropped() != 0 {
		t.Fatalf("dropped = %d", b.Dropped())
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if b.put(cctx, model.RawDetection{FrameNumber: 2}) {
		t.Fatal("put on a full inbox should give up when ctx ends")
	}
}
