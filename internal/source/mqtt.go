package source

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
)

// MQTT subscribes to a detection topic.  The paho client reconnects on its
// own; the subscription is renewed from OnConnect so it survives clean
// sessions.  Messages are pushed from paho's router, which must not stall,
// so a full inbox drops detections and counts them in Dropped.
type MQTT struct {
	client mqtt.Client
	topic  string
	box    *inbox
}

// NewMQTT connects to broker (host:port or a full tcp:// / ssl:// URL) and
// subscribes to topic with QoS 1.
func NewMQTT(broker, topic, clientID string, buffer int) (*MQTT, error) {
	m := &MQTT{topic: topic, box: newInbox(buffer)}

	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		log.Printf("mqtt-source: connected to %s, subscribing to %s", broker, topic)
		tok := c.Subscribe(topic, 1, m.onMessage)
		if tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
			log.Printf("mqtt-source: subscribe failed: %v", tok.Error())
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("mqtt-source: connection lost: %v; waiting for reconnect", err)
	}

	m.client = mqtt.NewClient(opts)
	tok := m.client.Connect()
	if !tok.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return m, nil
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	dets, err := Decode(msg.Payload(), time.Now())
	if err != nil {
		log.Printf("mqtt-source: drop message on %s: %v", msg.Topic(), err)
		return
	}
	for _, d := range dets {
		if !m.box.offer(d) {
			log.Printf("mqtt-source: inbox full, dropped detection from %s", d.CameraID)
		}
	}
}

// Dropped reports how many detections were discarded on a full inbox.
func (m *MQTT) Dropped() int64 { return m.box.Dropped() }

// Poll returns the detections received since the last call.
func (m *MQTT) Poll(ctx context.Context) ([]model.RawDetection, error) {
	return m.box.drain()
}

// Close unsubscribes and disconnects.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Unsubscribe(m.topic).WaitTimeout(2 * time.Second)
	}
	m.client.Disconnect(250)
	m.box.closed.Store(true)
	return nil
}
