package config

import (
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig parameterises the Redis token bucket.  KeyStrategy is one
// of ip, camera, route, ip_route, camera_route or ip_camera_route; camera
// is the subject of a verified ingest token and "anon" otherwise.
// CameraCapacity overrides Capacity for individual cameras.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	CameraCapacity map[string]int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* variables and clamps them to
// workable values.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_camera_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "parking:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
		CameraCapacity: parseCapacities(envStr("RATE_LIMIT_CAMERA_CAPACITY", "")),
	}
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

// LoadIngestRateLimitConfig is the bucket for POST /v1/detections: keyed by
// camera alone, sized by RATE_LIMIT_INGEST_CAPACITY (default 120) unless
// RATE_LIMIT_CAMERA_CAPACITY names the camera.
func LoadIngestRateLimitConfig() RateLimitConfig {
	cfg := LoadRateLimitConfig()
	cfg.KeyStrategy = "camera"
	cfg.Prefix += ":ingest"
	if c := envInt("RATE_LIMIT_INGEST_CAPACITY", 120); c > 0 {
		cfg.Capacity = c
	}
	return cfg
}

// CapacityFor returns the bucket size for camera.
func (c RateLimitConfig) CapacityFor(camera string) int {
	if n, ok := c.CameraCapacity[camera]; ok {
		return n
	}
	return c.Capacity
}

// Rate is the refill speed in tokens per second.
func (c RateLimitConfig) Rate() float64 {
	if c.RefillInterval <= 0 {
		return 0
	}
	return float64(c.RefillTokens) / c.RefillInterval.Seconds()
}

// parseCapacities reads "cam1=120,cam2=30".  Malformed or non-positive
// entries are ignored.
func parseCapacities(s string) map[string]int {
	out := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		cam, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if cam = strings.TrimSpace(cam); cam == "" || err != nil || n < 1 {
			continue
		}
		out[cam] = n
	}
	return out
}
