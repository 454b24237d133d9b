// Command server runs the occupancy API.  With -issue-token it instead
// prints a signed ingest token for a camera agent and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
	"github.com/iliyamo/fleet-parking-monitor/internal/handler"
	"github.com/iliyamo/fleet-parking-monitor/internal/metrics"
	"github.com/iliyamo/fleet-parking-monitor/internal/queue"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
	"github.com/iliyamo/fleet-parking-monitor/internal/router"
	"github.com/iliyamo/fleet-parking-monitor/internal/service"
	"github.com/iliyamo/fleet-parking-monitor/internal/storage"
	"github.com/iliyamo/fleet-parking-monitor/internal/utils"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	issueFor := flag.String("issue-token", "", "print an ingest token for this camera id and exit")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no %s loaded: %v", *envFile, err)
	}
	cfg := config.Load()

	if *issueFor != "" {
		tok, err := utils.NewIngestToken(cfg.JWTSecret, *issueFor, cfg.IngestTokenTTL)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(tok.Token)
		fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	reg, err := registry.Open(cfg.SpotsFile)
	if err != nil {
		log.Fatalf("spots: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without an ingest secret the server only reads, and the journal is
	// opened without a write handle.
	mode := storage.ReadOnly
	if cfg.JWTSecret != "" {
		mode = storage.ReadWrite
	}
	store, err := storage.Open(ctx, cfg, mode)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	m := metrics.New()
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Printf("redis unavailable, cache and rate limit off: %v", err)
	} else {
		defer rdb.Close()
	}

	deps := router.Deps{
		Occupancy: handler.NewOccupancyHandler(service.NewOccupancyService(reg, store)),
		Metrics:   m,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		JWTSecret: cfg.JWTSecret,

		IngestRateLimit: config.LoadIngestRateLimitConfig(),
	}
	if mode == storage.ReadOnly {
		log.Printf("JWT_SECRET not set, POST /v1/detections disabled")
	} else {
		in := &service.Ingestor{Registry: reg, Recorder: store, Metrics: m}
		if cfg.Publish.Enabled {
			pub := queue.NewPublisher(cfg.Publish.AMQPURL, cfg.Publish.Queue)
			defer pub.Close()
			in.Publisher = pub
		}
		deps.Ingest = handler.NewIngestHandler(in)
	}

	e := echo.New()
	e.HideBanner = true
	if cfg.Env == "dev" {
		e.Logger.SetLevel(glog.DEBUG)
	} else {
		e.Logger.SetLevel(glog.INFO)
	}
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	router.RegisterRoutes(e, deps)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s, spots=%d)", addr, cfg.Env, cfg.Store, reg.Len())
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
