package source

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

const (
	jitterOffset = 10 // max pixels the box origin moves from the spot corner
	jitterSize   = 20 // max pixels the box width/height differ from the spot
	minConf      = 0.6
	maxConf      = 0.95
)

// SyntheticOptions tunes the generator.  Zero values fall back to the demo
// defaults: camera "main_camera" and 2 to 8 vehicles per frame.
type SyntheticOptions struct {
	CameraID    string
	MinVehicles int
	MaxVehicles int
	// Seed makes the sequence reproducible; 0 picks a random seed.
	Seed uint64
	// Clock stamps each frame; defaults to time.Now.
	Clock func() time.Time
}

// Synthetic emits a frame of parked vehicles per poll.  Each vehicle sits
// on a distinct registry spot with its box jittered around the spot's
// geometry, so downstream matching and storage treat it like camera output.
type Synthetic struct {
	reg  *registry.Registry
	opts SyntheticOptions

	mu     sync.Mutex
	rng    *rand.Rand
	frame  int64
	last   time.Time
	closed bool
}

// NewSynthetic returns a generator over reg.
func NewSynthetic(reg *registry.Registry, opts SyntheticOptions) *Synthetic {
	if opts.CameraID == "" {
		opts.CameraID = "main_camera"
	}
	if opts.MinVehicles == 0 && opts.MaxVehicles == 0 {
		opts.MinVehicles, opts.MaxVehicles = 2, 8
	}
	if opts.MinVehicles < 0 {
		opts.MinVehicles = 0
	}
	if opts.MaxVehicles < opts.MinVehicles {
		opts.MaxVehicles = opts.MinVehicles
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Synthetic{
		reg:  reg,
		opts: opts,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Poll generates one frame.  All detections of a frame share a timestamp
// and frame number; timestamps never go backwards between frames.
func (s *Synthetic) Poll(ctx context.Context) ([]model.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	spots := s.reg.All()
	n := s.opts.MinVehicles + s.rng.IntN(s.opts.MaxVehicles-s.opts.MinVehicles+1)
	if n > len(spots) {
		n = len(spots)
	}

	now := s.opts.Clock().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	frame := s.frame
	s.frame++

	out := make([]model.RawDetection, 0, n)
	for _, i := range s.rng.Perm(len(spots))[:n] {
		spot := spots[i]
		id := spot.ID
		g := spot.Geometry
		out = append(out, model.RawDetection{
			Timestamp:   now,
			CameraID:    s.opts.CameraID,
			FrameNumber: frame,
			VehicleType: model.KnownVehicleTypes[s.rng.IntN(len(model.KnownVehicleTypes))],
			Confidence:  math.Round((minConf+s.rng.Float64()*(maxConf-minConf))*1000) / 1000,
			BBox: model.BBox{
				X:      g.X1 + s.jitter(jitterOffset),
				Y:      g.Y1 + s.jitter(jitterOffset),
				Width:  math.Max(0, g.Width()+s.jitter(jitterSize)),
				Height: math.Max(0, g.Height()+s.jitter(jitterSize)),
			},
			ParkingSpotID: &id,
		})
	}
	return out, nil
}

// jitter returns a whole number of pixels in [-limit, limit].
func (s *Synthetic) jitter(limit int) float64 {
	return float64(s.rng.IntN(2*limit+1) - limit)
}

// Close stops the generator.
func (s *Synthetic) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
