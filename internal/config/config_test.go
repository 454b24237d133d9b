package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DETECTION_STORE", "FPS", "DETECTION_SOURCE", "SYNTH_MIN_VEHICLES", "SYNTH_MAX_VEHICLES", "RABBITMQ_URL", "AMQP_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8000" || cfg.Store != StoreSQLite || cfg.FPS != 1 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Source.Kind != SourceSynthetic || cfg.Source.MinVehicles != 2 || cfg.Source.MaxVehicles != 8 {
		t.Fatalf("source defaults = %+v", cfg.Source)
	}
	if cfg.Source.CameraID != "main_camera" {
		t.Fatalf("camera = %q", cfg.Source.CameraID)
	}
	if cfg.Interval() != time.Second {
		t.Fatalf("interval = %v", cfg.Interval())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DETECTION_STORE", "JSONL")
	t.Setenv("FPS", "4")
	t.Setenv("AMQP_URL", "amqp://broker:5672/")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("PUBLISH_RECORDED", "yes")
	cfg := Load()
	if cfg.Store != StoreJSONL {
		t.Fatalf("store = %q", cfg.Store)
	}
	if cfg.Interval() != 250*time.Millisecond {
		t.Fatalf("interval = %v", cfg.Interval())
	}
	if cfg.Source.AMQPURL != "amqp://broker:5672/" || cfg.Publish.AMQPURL != cfg.Source.AMQPURL {
		t.Fatalf("amqp url = %q / %q", cfg.Source.AMQPURL, cfg.Publish.AMQPURL)
	}
	if !cfg.Publish.Enabled {
		t.Fatal("publish should be enabled")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:       "8000",
			Store:      StoreSQLite,
			SQLitePath: "x.db",
			FPS:        1,
			Source:     SourceConfig{Kind: SourceSynthetic, MinVehicles: 2, MaxVehicles: 8},
		}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown store", func(c *Config) { c.Store = "postgres" }, "DETECTION_STORE"},
		{"mysql needs db", func(c *Config) { c.Store = StoreMySQL }, "DB_USER"},
		{"zero fps", func(c *Config) { c.FPS = 0 }, "FPS"},
		{"min above max", func(c *Config) { c.Source.MinVehicles = 9 }, "SYNTH_MIN_VEHICLES"},
		{"unknown source", func(c *Config) { c.Source.Kind = "webcam" }, "DETECTION_SOURCE"},
		{"mqtt needs broker", func(c *Config) { c.Source.Kind = SourceMQTT; c.Source.MQTTTopic = "t"; c.Source.BufferSize = 1 }, "MQTT_BROKER"},
		{"kafka needs servers", func(c *Config) { c.Source.Kind = SourceKafka; c.Source.BufferSize = 1 }, "KAFKA_BOOTSTRAP_SERVERS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base: %v", err)
	}
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	if cfg.Capacity != 1 || cfg.RefillTokens != 1 || cfg.RefillInterval != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.TTL != 10*time.Second {
		t.Fatalf("ttl = %v, want 10s", cfg.TTL)
	}
}

func TestIngestRateLimitPerCamera(t *testing.T) {
	t.Setenv("RATE_LIMIT_PREFIX", "rl")
	t.Setenv("RATE_LIMIT_INGEST_CAPACITY", "40")
	t.Setenv("RATE_LIMIT_CAMERA_CAPACITY", "gate_cam=200, lot_b = 10,bad,zero=0,=5")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "5")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "500ms")
	cfg := LoadIngestRateLimitConfig()
	if cfg.KeyStrategy != "camera" || cfg.Prefix != "rl:ingest" {
		t.Fatalf("cfg = %+v", cfg)
	}
	cases := map[string]int{"gate_cam": 200, "lot_b": 10, "zero": 40, "main_camera": 40}
	for cam, want := range cases {
		if got := cfg.CapacityFor(cam); got != want {
			t.Errorf("CapacityFor(%q) = %d, want %d", cam, got, want)
		}
	}
	if len(cfg.CameraCapacity) != 2 {
		t.Errorf("CameraCapacity = %v", cfg.CameraCapacity)
	}
	if cfg.Rate() != 10 {
		t.Errorf("Rate = %v, want 10", cfg.Rate())
	}
	if LoadRateLimitConfig().Capacity != 60 {
		t.Errorf("read routes should keep the default capacity")
	}
}

func TestCacheMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head ,")
	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
		t.Fatalf("methods = %v", cfg.Methods)
	}
}
