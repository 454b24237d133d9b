package source

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// Kafka reads detections from a topic as part of a consumer group.  Offsets
// are committed automatically; a detection is considered consumed once it
// is in the inbox, and the reader waits while the inbox is full.
type Kafka struct {
	consumer *kafka.Consumer
	box      *inbox
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewKafka joins groupID and subscribes to topic.
func NewKafka(ctx context.Context, bootstrap, topic, groupID string, buffer int) (*Kafka, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	k := &Kafka{consumer: c, box: newInbox(buffer), cancel: cancel, done: make(chan struct{})}
	go k.run(ctx)
	log.Printf("kafka-source: consuming %s from %s as %s", topic, bootstrap, groupID)
	return k, nil
}

func (k *Kafka) run(ctx context.Context) {
	defer close(k.done)
	for ctx.Err() == nil {
		msg, err := k.consumer.ReadMessage(200 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.IsTimeout() {
				continue
			}
			log.Printf("kafka-source: read failed: %v", err)
			if errors.As(err, &kerr) && kerr.IsFatal() {
				return
			}
			continue
		}
		dets, err := Decode(msg.Value, time.Now())
		if err != nil {
			log.Printf("kafka-source: skip offset %v: %v", msg.TopicPartition.Offset, err)
			continue
		}
		for _, d := range dets {
			if !k.box.put(ctx, d) {
				return
			}
		}
	}
}

// Poll returns the detections read since the last call.
func (k *Kafka) Poll(ctx context.Context) ([]model.RawDetection, error) {
	return k.box.drain()
}

// Close leaves the consumer group.
func (k *Kafka) Close() error {
	k.cancel()
	<-k.done
	k.box.closed.Store(true)
	return k.consumer.Close()
}
