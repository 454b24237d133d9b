package source

import (
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

var decodeNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestDecodeNested(t *testing.T) {
	body := `{"timestamp":"2026-10-18T08:59:58.5Z","camera_id":"cam-2","frame_number":7,
		"vehicle_type":"bus","confidence":0.8,"bbox":{"x":1,"y":2,"width":3,"height":4}}`
	got, err := Decode([]byte(body), decodeNow)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	d := got[0]
	if d.CameraID != "cam-2" || d.FrameNumber != 7 || d.VehicleType != model.VehicleBus {
		t.Fatalf("decoded = %+v", d)
	}
	if d.BBox != (model.BBox{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Fatalf("bbox = %+v", d.BBox)
	}
	if !d.Timestamp.Equal(time.Date(2026, 10, 18, 8, 59, 58, 500e6, time.UTC)) {
		t.Fatalf("timestamp = %v", d.Timestamp)
	}
}

func TestDecodeFlatArray(t *testing.T) {
	body := `[
		{"timestamp":"2026-10-18T08:00:00.123456","camera_id":"main_camera","frame_number":1,
		 "vehicle_type":"scooter","confidence":0.7,"bbox_x":50,"bbox_y":100,"bbox_width":90,"bbox_height":95,
		 "parking_spot_id":"A01","occupied":true},
		{"camera_id":"main_camera","confidence":0.9,"bbox_x":0,"bbox_y":0,"bbox_width":10,"bbox_height":10}
	]`
	got, err := Decode([]byte(body), decodeNow)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].VehicleType != model.VehicleUnknown {
		t.Fatalf("unrecognised label should map to unknown, got %q", got[0].VehicleType)
	}
	if got[0].BBox.Height != 95 || got[0].ParkingSpotID == nil || *got[0].ParkingSpotID != "A01" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[0].Timestamp.Location() != time.UTC || got[0].Timestamp.Hour() != 8 {
		t.Fatalf("naive timestamp = %v", got[0].Timestamp)
	}
	if !got[1].Timestamp.Equal(decodeNow) {
		t.Fatalf("missing timestamp should default to now, got %v", got[1].Timestamp)
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"not json":       `hello`,
		"no camera":      `{"confidence":0.5}`,
		"confidence":     `{"camera_id":"c","confidence":1.5}`,
		"negative bbox":  `{"camera_id":"c","confidence":0.5,"bbox":{"x":0,"y":0,"width":-1,"height":1}}`,
		"bad timestamp":  `{"camera_id":"c","confidence":0.5,"timestamp":"yesterday"}`,
		"bad array item": `[{"camera_id":"c","confidence":0.5},{"camera_id":""}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(body), decodeNow); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}
