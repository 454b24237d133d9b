// Package source provides the detection sources the ingestion loop pulls
// from: a synthetic generator for demos and broker-backed sources (AMQP,
// MQTT, Kafka) for real cameras.  Every source is polled once per tick and
// returns whatever arrived since the previous poll.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

// Source yields raw, not yet spot-matched detections.
type Source interface {
	// Poll returns the detections available now.  It must not block
	// waiting for new ones; an empty slice is a valid answer.
	Poll(ctx context.Context) ([]model.RawDetection, error)
	Close() error
}

// ErrClosed is returned by Poll after Close.
var ErrClosed = errors.New("source closed")

// New builds the source selected by cfg.Kind.  Broker sources start their
// background consumers here and keep running until Close or until ctx ends.
func New(ctx context.Context, cfg config.SourceConfig, reg *registry.Registry) (Source, error) {
	switch cfg.Kind {
	case config.SourceSynthetic, "":
		return NewSynthetic(reg, SyntheticOptions{
			CameraID:    cfg.CameraID,
			MinVehicles: cfg.MinVehicles,
			MaxVehicles: cfg.MaxVehicles,
		}), nil
	case config.SourceAMQP:
		return NewAMQP(ctx, cfg.AMQPURL, cfg.Queue, cfg.BufferSize), nil
	case config.SourceMQTT:
		m, err := NewMQTT(cfg.MQTTBroker, cfg.MQTTTopic, cfg.MQTTClientID, cfg.BufferSize)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.SourceKafka:
		k, err := NewKafka(ctx, cfg.KafkaBootstrap, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.BufferSize)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
	return nil, fmt.Errorf("unknown detection source %q", cfg.Kind)
}

// inbox decouples broker consumers from the ingestion tick.  Consumers
// that can hold back their broker wait in put; push-style callbacks use
// offer, which drops and counts when the backlog is full.
type inbox struct {
	ch      chan model.RawDetection
	closed  atomic.Bool
	dropped atomic.Int64
}

func newInbox(size int) *inbox {
	if size < 1 {
		size = 1
	}
	return &inbox{ch: make(chan model.RawDetection, size)}
}

func (b *inbox) offer(d model.RawDetection) bool {
	select {
	case b.ch <- d:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// put waits for room in the backlog.  It reports false if ctx ends first.
func (b *inbox) put(ctx context.Context, d model.RawDetection) bool {
	select {
	case b.ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain empties the backlog without waiting.
func (b *inbox) drain() ([]model.RawDetection, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	var out []model.RawDetection
	for {
		select {
		case d := <-b.ch:
			out = append(out, d)
		default:
			return out, nil
		}
	}
}

// Dropped reports how many detections were discarded because the backlog
// was full.
func (b *inbox) Dropped() int64 { return b.dropped.Load() }
