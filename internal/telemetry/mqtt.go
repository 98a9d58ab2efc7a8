// Package telemetry publishes periodic health snapshots to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/orion-relay/internal/config"
	"github.com/e7canasta/orion-relay/internal/health"
)

const publishTimeout = 2 * time.Second

// Encoding names accepted in mqtt.encoding.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

// client is the subset of mqtt.Client used for publishing.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// Publisher sends health.Status snapshots on a fixed interval.
//
// Broker outages never affect the relay: failed publishes are counted and
// logged, and paho reconnects in the background.
type Publisher struct {
	cfg      config.MQTTConfig
	snapshot func() health.Status

	raw    mqtt.Client
	client client

	connected atomic.Bool
	published atomic.Uint64
	errors    atomic.Uint64
}

// NewPublisher creates a publisher for cfg. snapshot is called once per interval.
func NewPublisher(cfg config.MQTTConfig, snapshot func() health.Status) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("telemetry: broker is required")
	}
	if snapshot == nil {
		return nil, fmt.Errorf("telemetry: snapshot func is required")
	}
	if _, err := Encode(cfg.Encoding, health.Status{}); err != nil {
		return nil, err
	}
	return &Publisher{cfg: cfg, snapshot: snapshot}, nil
}

// Connect establishes the broker connection.
//
// The first attempt must succeed within 5s; afterwards paho auto-reconnects.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.connected.Store(true)
		slog.Info("telemetry: mqtt connection established",
			"broker", p.cfg.Broker,
			"client_id", p.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.connected.Store(false)
		slog.Warn("telemetry: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", p.cfg.Broker,
		)
	}

	p.raw = mqtt.NewClient(opts)
	p.client = p.raw

	slog.Info("telemetry: connecting to mqtt broker", "broker", p.cfg.Broker)

	token := p.raw.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("telemetry: mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: mqtt connection failed: %w", err)
	}
	p.connected.Store(true)
	return nil
}

// Run publishes a snapshot every interval until ctx is cancelled.
// Always returns nil: publish failures are logged, never fatal.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.PublishOnce(); err != nil {
				slog.Warn("telemetry: health publish failed", "topic", p.cfg.Topic, "error", err)
			}
		}
	}
}

// PublishOnce encodes and publishes the current snapshot.
func (p *Publisher) PublishOnce() error {
	if p.client == nil || !p.client.IsConnected() {
		p.errors.Add(1)
		return fmt.Errorf("telemetry: mqtt not connected")
	}

	status := p.snapshot()
	payload, err := Encode(p.cfg.Encoding, status)
	if err != nil {
		p.errors.Add(1)
		return err
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.errors.Add(1)
		return fmt.Errorf("telemetry: publish timeout")
	}
	if err := token.Error(); err != nil {
		p.errors.Add(1)
		return fmt.Errorf("telemetry: publish failed: %w", err)
	}

	p.published.Add(1)
	slog.Debug("telemetry: health published",
		"topic", p.cfg.Topic,
		"status", status.Status,
		"size", len(payload),
	)
	return nil
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	if p.raw != nil && p.raw.IsConnected() {
		p.raw.Disconnect(250)
		slog.Info("telemetry: mqtt disconnected")
	}
	p.connected.Store(false)
}

// Stats returns publisher statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		Connected: p.connected.Load(),
		Published: p.published.Load(),
		Errors:    p.errors.Load(),
	}
}

// Encode serializes v with the named encoding.
func Encode(encoding string, v any) ([]byte, error) {
	switch encoding {
	case "", EncodingJSON:
		return json.Marshal(v)
	case EncodingMsgpack:
		return msgpack.Marshal(v)
	default:
		return nil, fmt.Errorf("telemetry: unknown encoding %q", encoding)
	}
}
