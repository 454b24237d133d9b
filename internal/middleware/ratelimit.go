package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
)

// tokenBucketScript charges cost tokens against a bucket that refills
// continuously at rate tokens per second, timed by the Redis server clock
// so every API replica agrees.  It returns {allowed, remaining,
// retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local cost = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local t = redis.call('TIME')
	local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

	local level = tonumber(redis.call('HGET', KEYS[1], 'level'))
	local at = tonumber(redis.call('HGET', KEYS[1], 'at'))
	if level == nil or at == nil then
		level = capacity
		at = now
	end
	if now > at then
		level = math.min(capacity, level + (now - at) * rate / 1000)
	end

	local allowed = 0
	local wait = 0
	if level >= cost then
		allowed = 1
		level = level - cost
	elseif rate > 0 then
		wait = math.ceil((cost - level) * 1000 / rate)
	end

	redis.call('HSET', KEYS[1], 'level', tostring(level), 'at', tostring(now))
	redis.call('EXPIRE', KEYS[1], ttl)
	return { allowed, math.floor(level), wait }
`)

// NewTokenBucket limits requests per key with a Redis token bucket.  Each
// request costs one token; the bucket size comes from cfg.CapacityFor the
// calling camera.  Redis errors fail open: the request is served and, with
// cfg.Debug, logged.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	rate := cfg.Rate()
	ttl := int64(cfg.TTL / time.Second)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			capacity := cfg.CapacityFor(cameraID(c))
			vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
				capacity, rate, 1, ttl).Result()
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
				}
				return next(c)
			}
			arr, ok := vals.([]interface{})
			if !ok || len(arr) != 3 {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] unexpected script result for key=%s: %#v", key, vals)
				}
				return next(c)
			}
			allowed := asInt64(arr[0]) == 1
			remaining := asInt64(arr[1])

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := retryAfterSeconds(asInt64(arr[2]))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block key=%s capacity=%d retry=%ds", key, capacity, secs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			if cfg.Debug {
				c.Response().Header().Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

// retryAfterSeconds rounds a wait up to whole seconds, at least one.
func retryAfterSeconds(ms int64) int {
	secs := int(math.Ceil(float64(ms) / 1000.0))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	cam := cameraID(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "camera":
		parts = append(parts, "camera", cam)
	case "route":
		parts = append(parts, "route", route)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "camera_route":
		parts = append(parts, "camera", cam, "route", route)
	default: // "ip_camera_route"
		parts = append(parts, "ip", ip, "camera", cam, "route", route)
	}
	return strings.Join(parts, ":")
}
