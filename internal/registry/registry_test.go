package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrdersByID(t *testing.T) {
	r, err := Load([]SpotConfig{
		{ID: "B01", X1: 0, Y1: 0, X2: 10, Y2: 10},
		{ID: "A02", X1: 20, Y1: 0, X2: 30, Y2: 10},
		{ID: "A01", X1: 40, Y1: 0, X2: 50, Y2: 10},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ids := r.IDs()
	want := []string{"A01", "A02", "B01"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Expected order %v, got %v", want, ids)
		}
	}
	if r.Len() != 3 {
		t.Errorf("Expected 3 spots, got %d", r.Len())
	}
}

func TestLoadRejectsBadGeometry(t *testing.T) {
	cases := map[string]SpotConfig{
		"zero width": {ID: "A01", X1: 10, Y1: 0, X2: 10, Y2: 10},
		"neg height": {ID: "A01", X1: 0, Y1: 10, X2: 10, Y2: 5},
		"empty id":   {ID: "  ", X1: 0, Y1: 0, X2: 10, Y2: 10},
	}
	for name, c := range cases {
		_, err := Load([]SpotConfig{c})
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigError, got %v", name, err)
		}
	}
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	_, err := Load([]SpotConfig{
		{ID: "A01", X1: 0, Y1: 0, X2: 10, Y2: 10},
		{ID: "A01", X1: 20, Y1: 0, X2: 30, Y2: 10},
	})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if cfgErr.SpotID != "A01" {
		t.Errorf("Expected spot A01 in error, got %q", cfgErr.SpotID)
	}
}

func TestGet(t *testing.T) {
	r, err := Load(DefaultLayout())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s, err := r.Get("B02")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.Geometry.X1 != 170 || s.Geometry.Y1 != 220 || s.Geometry.X2 != 270 || s.Geometry.Y2 != 320 {
		t.Errorf("Unexpected B02 geometry: %+v", s.Geometry)
	}
	if _, err := r.Get("Z99"); !errors.Is(err, ErrSpotNotFound) {
		t.Errorf("Expected ErrSpotNotFound, got %v", err)
	}
}

func TestDefaultLayout(t *testing.T) {
	r, err := Load(DefaultLayout())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.Len() != 12 {
		t.Fatalf("Expected 12 spots, got %d", r.Len())
	}
	ids := r.IDs()
	if ids[0] != "A01" || ids[11] != "C04" {
		t.Errorf("Unexpected ids %v", ids)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spots.json")
	content := `[{"id":"A01","x1":50,"y1":100,"x2":150,"y2":200}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write spots file: %v", err)
	}
	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 spot, got %d", r.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestOpenFallsBackToDefaultLayout(t *testing.T) {
	r, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if r.Len() != 12 {
		t.Errorf("Expected 12 spots, got %d", r.Len())
	}
	var ce *ConfigError
	if _, err := Open(filepath.Join(t.TempDir(), "nope.json")); !errors.As(err, &ce) {
		t.Errorf("Expected *ConfigError, got %v", err)
	}
}
