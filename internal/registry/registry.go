// Package registry holds the static catalogue of parking spots.  A Registry
// is built once at startup and then shared read-only by the matcher and the
// occupancy service; it is safe for concurrent use without locking.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// SpotConfig is the on-disk form of one spot.
type SpotConfig struct {
	ID string  `json:"id"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Registry is an immutable, ID-ordered set of parking spots.
type Registry struct {
	spots []model.ParkingSpot
	index map[string]int
}

// Load validates the definitions and builds a Registry.  It fails with a
// *ConfigError when an id is empty or duplicated, or when a rectangle has
// non-positive width or height.
func Load(cfgs []SpotConfig) (*Registry, error) {
	r := &Registry{
		spots: make([]model.ParkingSpot, 0, len(cfgs)),
		index: make(map[string]int, len(cfgs)),
	}
	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, &ConfigError{Reason: "empty spot id"}
		}
		if seen[id] {
			return nil, &ConfigError{SpotID: id, Reason: "duplicate spot id"}
		}
		seen[id] = true
		geom := model.Rect{X1: c.X1, Y1: c.Y1, X2: c.X2, Y2: c.Y2}
		if geom.Width() <= 0 || geom.Height() <= 0 {
			return nil, &ConfigError{SpotID: id, Reason: fmt.Sprintf("non-positive size %gx%g", geom.Width(), geom.Height())}
		}
		r.spots = append(r.spots, model.ParkingSpot{ID: id, Geometry: geom, Status: model.SpotUnknown})
	}
	sort.Slice(r.spots, func(i, j int) bool { return r.spots[i].ID < r.spots[j].ID })
	for i, s := range r.spots {
		r.index[s.ID] = i
	}
	return r, nil
}

// LoadFile reads a JSON array of SpotConfig from path and calls Load.
// Unreadable or malformed files are reported as *ConfigError too.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}
	var cfgs []SpotConfig
	if err := json.Unmarshal(raw, &cfgs); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("decode %s: %v", path, err)}
	}
	return Load(cfgs)
}

// DefaultLayout is the three-row, twelve-spot lot the demo camera looks at.
func DefaultLayout() []SpotConfig {
	var out []SpotConfig
	for row, y := range []float64{100, 220, 340} {
		for col, x := range []float64{50, 170, 290, 410} {
			out = append(out, SpotConfig{
				ID: fmt.Sprintf("%c%02d", 'A'+row, col+1),
				X1: x, Y1: y, X2: x + 100, Y2: y + 100,
			})
		}
	}
	return out
}

// All returns the spots ordered by id.  The slice is a copy.
func (r *Registry) All() []model.ParkingSpot {
	out := make([]model.ParkingSpot, len(r.spots))
	copy(out, r.spots)
	return out
}

// IDs returns the spot ids in registry order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.spots))
	for i, s := range r.spots {
		out[i] = s.ID
	}
	return out
}

// Get returns the spot with the given id or ErrSpotNotFound.
func (r *Registry) Get(id string) (model.ParkingSpot, error) {
	i, ok := r.index[id]
	if !ok {
		return model.ParkingSpot{}, fmt.Errorf("%w: %s", ErrSpotNotFound, id)
	}
	return r.spots[i], nil
}

// Len is the number of registered spots.
func (r *Registry) Len() int { return len(r.spots) }

// Open loads the spots from path, or the built-in layout when path is
// empty.
func Open(path string) (*Registry, error) {
	if path == "" {
		return Load(DefaultLayout())
	}
	return LoadFile(path)
}
