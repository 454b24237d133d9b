package matcher

import (
	"math"
	"testing"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

func mustRegistry(t *testing.T, cfgs ...registry.SpotConfig) *registry.Registry {
	t.Helper()
	r, err := registry.Load(cfgs)
	if err != nil {
		t.Fatalf("registry.Load failed: %v", err)
	}
	return r
}

func TestNoIntersectionReturnsNone(t *testing.T) {
	reg := mustRegistry(t, registry.SpotConfig{ID: "A01", X1: 50, Y1: 100, X2: 150, Y2: 200})

	boxes := []model.BBox{
		{X: 200, Y: 100, Width: 50, Height: 50}, // right of the spot
		{X: 0, Y: 0, Width: 40, Height: 40},     // above-left
		{X: 150, Y: 100, Width: 50, Height: 50}, // touching edge only
	}
	for _, b := range boxes {
		if id, ok := Match(b, reg); ok {
			t.Errorf("Expected no match for %+v, got %s", b, id)
		}
	}
}

func TestContainedBoxMatches(t *testing.T) {
	reg := mustRegistry(t, registry.SpotConfig{ID: "A01", X1: 50, Y1: 100, X2: 150, Y2: 200})
	b := model.BBox{X: 55, Y: 105, Width: 90, Height: 90}

	if r := OverlapRatio(b, model.Rect{X1: 50, Y1: 100, X2: 150, Y2: 200}); r != 1.0 {
		t.Errorf("Expected ratio 1.0, got %f", r)
	}
	id, ok := Match(b, reg)
	if !ok || id != "A01" {
		t.Errorf("Expected A01, got %q (ok=%v)", id, ok)
	}
}

func TestFirstQualifyingSpotWins(t *testing.T) {
	// Overlapping geometries: the box has 75% of its area in each.
	reg := mustRegistry(t,
		registry.SpotConfig{ID: "S2", X1: 0, Y1: 0, X2: 100, Y2: 100},
		registry.SpotConfig{ID: "S1", X1: 50, Y1: 0, X2: 150, Y2: 100},
	)
	b := model.BBox{X: 25, Y: 0, Width: 100, Height: 100}
	for i := 0; i < 10; i++ {
		id, ok := Match(b, reg)
		if !ok || id != "S1" {
			t.Fatalf("Expected S1 (first in id order), got %q", id)
		}
	}

	// Higher overlap in the later spot must not change the answer.
	b = model.BBox{X: 10, Y: 0, Width: 100, Height: 100}
	inS1 := OverlapRatio(b, model.Rect{X1: 50, Y1: 0, X2: 150, Y2: 100})
	inS2 := OverlapRatio(b, model.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100})
	if inS1 <= Threshold || inS2 <= inS1 {
		t.Fatalf("test setup: expected 0.3 < S1 (%f) < S2 (%f)", inS1, inS2)
	}
	if id, _ := Match(b, reg); id != "S1" {
		t.Errorf("Expected S1, got %q", id)
	}
}

func TestThresholdIsStrict(t *testing.T) {
	spot := model.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	reg := mustRegistry(t, registry.SpotConfig{ID: "A01", X1: 0, Y1: 0, X2: 100, Y2: 100})

	// Exactly 30% of the box inside the spot.
	b := model.BBox{X: 70, Y: 0, Width: 100, Height: 100}
	if r := OverlapRatio(b, spot); math.Abs(r-0.30) > 1e-12 {
		t.Fatalf("Expected ratio 0.30, got %f", r)
	}
	if _, ok := Match(b, reg); ok {
		t.Error("Expected no match at exactly the threshold")
	}

	b.X = 69
	if id, ok := Match(b, reg); !ok || id != "A01" {
		t.Errorf("Expected A01 just above threshold, got %q", id)
	}
}

func TestDegenerateBoxHasZeroRatio(t *testing.T) {
	spot := model.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	for _, b := range []model.BBox{
		{X: 10, Y: 10, Width: 0, Height: 50},
		{X: 10, Y: 10, Width: 50, Height: 0},
	} {
		if r := OverlapRatio(b, spot); r != 0 {
			t.Errorf("Expected 0 for %+v, got %f", b, r)
		}
	}
}

func TestRatioUsesBoxArea(t *testing.T) {
	// A box twice the spot size that fully covers it: only half its area is inside.
	spot := model.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	b := model.BBox{X: 0, Y: 0, Width: 200, Height: 100}
	if r := OverlapRatio(b, spot); r != 0.5 {
		t.Errorf("Expected 0.5, got %f", r)
	}
}
