package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/draftpace/draftpace/internal/config"
)

// MQTT keeps the latest record per rider from JSON messages published on a
// topic filter such as draftpace/riders/+. Each message carries one Record;
// when its id is empty the last topic segment is used instead.
type MQTT struct {
	selfID string
	client mqtt.Client

	mu      sync.RWMutex
	records map[string]Record
	updated time.Time
}

// NewMQTT connects to cfg.MQTT.Broker and subscribes to cfg.MQTT.Topic.
// The subscription is re-established on every reconnect.
func NewMQTT(cfg config.TelemetryConfig) (*MQTT, error) {
	m := newMQTTState(cfg.SelfID)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			m.subscribe(c, cfg.MQTT.Topic, cfg.MQTT.QoS, cfg.Timeout)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("telemetry: mqtt connection lost", "broker", cfg.MQTT.Broker, "err", err)
		})
	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password())
	}

	m.client = mqtt.NewClient(opts)
	tok := m.client.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: timed out after %s", cfg.MQTT.Broker, cfg.Timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: %w", cfg.MQTT.Broker, err)
	}
	return m, nil
}

// subscribeAttempts bounds subscribe retries within one connection.
const subscribeAttempts = 3

// subscriber is the part of mqtt.Client used to (re)subscribe.
type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	IsConnectionOpen() bool
}

// subscribe subscribes c to topic, retrying while the broker does not answer
// within timeout and the connection stays open. A broker error is not retried;
// the next reconnect subscribes again. It reports whether the subscription
// was acknowledged.
func (m *MQTT) subscribe(c subscriber, topic string, qos byte, timeout time.Duration) bool {
	for attempt := 1; ; attempt++ {
		tok := c.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
			m.ingest(msg.Topic(), msg.Payload())
		})
		if !tok.WaitTimeout(timeout) {
			if attempt >= subscribeAttempts || !c.IsConnectionOpen() {
				slog.Error("telemetry: mqtt subscribe timed out, waiting for reconnect",
					"topic", topic, "attempts", attempt)
				return false
			}
			slog.Warn("telemetry: mqtt subscribe timed out, retrying",
				"topic", topic, "attempt", attempt, "timeout", timeout)
			continue
		}
		if err := tok.Error(); err != nil {
			slog.Error("telemetry: mqtt subscribe failed", "topic", topic, "err", err)
			return false
		}
		slog.Info("telemetry: mqtt subscribed", "topic", topic)
		return true
	}
}

func newMQTTState(selfID string) *MQTT {
	return &MQTT{selfID: selfID, records: make(map[string]Record)}
}

// ingest decodes one message and stores it as the rider's latest record.
// Malformed payloads are logged and dropped.
func (m *MQTT) ingest(topic string, payload []byte) {
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		slog.Warn("telemetry: mqtt bad payload", "topic", topic, "err", err)
		return
	}
	if rec.ID == "" {
		rec.ID = topic[strings.LastIndex(topic, "/")+1:]
	}
	if rec.ID == "" || rec.ID == NoTarget {
		slog.Warn("telemetry: mqtt message without rider id", "topic", topic)
		return
	}

	m.mu.Lock()
	m.records[rec.ID] = rec
	m.updated = time.Now().UTC()
	m.mu.Unlock()
}

// Roster implements Provider. FetchedAt is the arrival time of the newest message.
func (m *MQTT) Roster(_ context.Context) (*Roster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return buildRoster(m.selfID, m.records, m.updated)
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
