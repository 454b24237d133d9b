package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// AMQP consumes detection messages from a durable RabbitMQ queue.  A
// background goroutine keeps a connection open, reconnecting with backoff,
// and moves decoded detections into a bounded inbox that Poll drains.
// A full inbox holds the consumer back, and the prefetch limit then holds
// back the broker.  Messages are acked once buffered, requeued if the
// consumer stops before they are, and rejected without requeue when they
// cannot be decoded, so one bad payload cannot wedge the queue.
type AMQP struct {
	url   string
	queue string
	box   *inbox

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewAMQP starts consuming queue on the broker at url.
func NewAMQP(ctx context.Context, url, queue string, buffer int) *AMQP {
	ctx, cancel := context.WithCancel(ctx)
	a := &AMQP{
		url:    url,
		queue:  queue,
		box:    newInbox(buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

// Poll returns the detections buffered since the last call.
func (a *AMQP) Poll(ctx context.Context) ([]model.RawDetection, error) {
	return a.box.drain()
}

// Close stops the consumer and waits for it to exit.
func (a *AMQP) Close() error {
	a.cancel()
	a.mu.Lock()
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.mu.Unlock()
	<-a.done
	a.box.closed.Store(true)
	return nil
}

func (a *AMQP) run(ctx context.Context) {
	defer close(a.done)
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(a.url)
		if err != nil {
			log.Printf("amqp-source: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		a.mu.Lock()
		a.conn = conn
		a.mu.Unlock()

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Printf("amqp-source: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (a *AMQP) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("amqp-source: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, a.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			a.handle(ctx, d)
		}
	}
}

func (a *AMQP) handle(ctx context.Context, d amqp.Delivery) {
	dets, err := Decode(d.Body, time.Now())
	if err != nil {
		log.Printf("amqp-source: reject message %s: %v", d.MessageId, err)
		_ = d.Nack(false, false)
		return
	}
	for _, det := range dets {
		if !a.box.put(ctx, det) {
			log.Printf("amqp-source: stopping with message %s unbuffered; requeued", d.MessageId)
			_ = d.Nack(false, true)
			return
		}
	}
	_ = d.Ack(false)
}

// sleepCtx waits for d or until ctx ends; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
