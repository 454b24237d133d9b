// Command detector runs the ingestion loop: it polls the configured
// detection source every 1/FPS seconds, matches each detection to a
// parking spot and appends it to the detection store.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
	"github.com/iliyamo/fleet-parking-monitor/internal/metrics"
	"github.com/iliyamo/fleet-parking-monitor/internal/queue"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
	"github.com/iliyamo/fleet-parking-monitor/internal/service"
	"github.com/iliyamo/fleet-parking-monitor/internal/source"
	"github.com/iliyamo/fleet-parking-monitor/internal/storage"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no %s loaded: %v", *envFile, err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	reg, err := registry.Open(cfg.SpotsFile)
	if err != nil {
		log.Fatalf("spots: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, storage.ReadWrite)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	src, err := source.New(ctx, cfg.Source, reg)
	if err != nil {
		log.Fatalf("source: %v", err)
	}
	defer src.Close()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.StartServer(cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("detector: metrics server: %v", err)
			}
		}()
	}

	in := &service.Ingestor{
		Registry: reg,
		Recorder: store,
		Source:   src,
		Metrics:  m,
		Interval: cfg.Interval(),
	}
	if cfg.Publish.Enabled {
		pub := queue.NewPublisher(cfg.Publish.AMQPURL, cfg.Publish.Queue)
		defer pub.Close()
		in.Publisher = pub
	}

	log.Printf("detector: source=%s store=%s fps=%g spots=%d", cfg.Source.Kind, cfg.Store, cfg.FPS, reg.Len())
	if err := in.Run(ctx); err != nil {
		log.Printf("detector: %v", err)
		return
	}
	log.Printf("detector: stopped")
}
