// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
	"github.com/iliyamo/fleet-parking-monitor/internal/handler"
	"github.com/iliyamo/fleet-parking-monitor/internal/metrics"
	"github.com/iliyamo/fleet-parking-monitor/internal/middleware"
	"github.com/iliyamo/fleet-parking-monitor/internal/utils"
)

// Deps bundles what the routes need.  Redis, Metrics and Ingest may be nil:
// without Redis the cache and limiter pass through, without Metrics there
// is no /metrics, and without Ingest (or a JWT secret) the push endpoint
// is not mounted.
type Deps struct {
	Occupancy *handler.OccupancyHandler
	Ingest    *handler.IngestHandler
	Metrics   *metrics.Metrics
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	// IngestRateLimit is the per-camera bucket on POST /v1/detections.
	IngestRateLimit config.RateLimitConfig
	JWTSecret       string
}

// RegisterRoutes mounts every endpoint on e.
//
//	GET  /health
//	GET  /stats
//	GET  /spots
//	GET  /spots/:id
//	GET  /detections/recent?limit=N
//	GET  /detections/:id
//	GET  /history/:hours          (cached in Redis)
//	POST /v1/detections           (Bearer token, role INGEST)
//	GET  /metrics
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	o := d.Occupancy
	e.GET("/health", o.Health)

	limited := e.Group("", middleware.NewTokenBucket(d.RateLimit, d.Redis))
	limited.GET("/stats", o.Stats)
	limited.GET("/spots", o.Spots)
	limited.GET("/spots/:id", o.Spot)
	limited.GET("/detections/recent", o.RecentDetections)
	limited.GET("/detections/:id", o.Detection)
	limited.GET("/history/:hours", o.History, middleware.NewRedisCache(d.Cache, d.Redis))

	if d.Ingest != nil && d.JWTSecret != "" {
		v1 := e.Group("/v1",
			echomw.BodyLimit("2M"),
			middleware.JWTAuth(d.JWTSecret),
			middleware.RequireRole(utils.RoleIngest),
			middleware.NewTokenBucket(d.IngestRateLimit, d.Redis),
		)
		v1.POST("/detections", d.Ingest.Create)
	}
}
