package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

func TestDetectionRecordedEventJSON(t *testing.T) {
	ts := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	raw := model.RawDetection{
		Timestamp:   ts,
		CameraID:    "main_camera",
		FrameNumber: 3,
		VehicleType: model.VehicleTruck,
		Confidence:  0.77,
		BBox:        model.BBox{X: 1, Y: 2, Width: 3, Height: 4},
	}
	d := model.NewVehicleDetection(raw, "B02")
	d.ID = 41

	ev := NewDetectionRecordedEvent("evt-1", d, ts.Add(time.Second).In(time.FixedZone("X", 3600)))
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["event_id"] != "evt-1" || m["detection_id"] != float64(41) || m["parking_spot_id"] != "B02" || m["occupied"] != true {
		t.Fatalf("event = %s", b)
	}
	if m["recorded_at"] != "2026-10-18T08:00:01Z" {
		t.Fatalf("recorded_at = %v", m["recorded_at"])
	}

	unmatched := model.NewVehicleDetection(raw, "")
	b, _ = json.Marshal(NewDetectionRecordedEvent("evt-2", unmatched, ts))
	m = nil
	_ = json.Unmarshal(b, &m)
	if v, ok := m["parking_spot_id"]; !ok || v != nil {
		t.Fatalf("parking_spot_id should be explicit null: %s", b)
	}
}
