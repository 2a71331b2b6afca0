// Package publish sends decode results to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
)

// ErrNotConnected is returned when publishing on a closed publisher.
var ErrNotConnected = errors.New("mqtt publisher not connected")

// Config contains the broker connection and topic settings.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
	Timeout  time.Duration
}

// Message is the payload published for each result.
type Message struct {
	Source        string    `json:"source,omitempty"`
	Number        string    `json:"number,omitempty"`
	BarNumber     string    `json:"bar_number,omitempty"`
	GlyphNumber   string    `json:"glyph_number,omitempty"`
	Mismatch      bool      `json:"mismatch"`
	ChecksumValid bool      `json:"checksum_valid"`
	AngleDegrees  float64   `json:"angle_deg"`
	Errors        []string  `json:"errors,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewMessage flattens a result into its published form.
func NewMessage(res *pipeline.Result, now time.Time) Message {
	m := Message{
		Source:        res.Source,
		Mismatch:      res.Mismatch,
		ChecksumValid: res.ChecksumValid,
		AngleDegrees:  res.AngleDegrees,
		Timestamp:     now.UTC(),
	}
	m.Number, _ = res.Number()
	if res.BarNumber != nil {
		m.BarNumber = *res.BarNumber
	}
	if res.GlyphNumber != nil {
		m.GlyphNumber = *res.GlyphNumber
	}
	for _, e := range res.Errors {
		m.Errors = append(m.Errors, e.Error())
	}
	return m
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes results as JSON messages.
type Publisher struct {
	client client
	cfg    Config
	now    func() time.Time
}

// Connect dials the broker and returns a ready publisher.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	options := mqtt.NewClientOptions()
	options.AddBroker(cfg.Broker)
	options.SetClientID(cfg.ClientID)
	options.SetConnectTimeout(cfg.Timeout)
	options.SetAutoReconnect(true)
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	c := mqtt.NewClient(options)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to %s: timed out after %v", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)
	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg Config) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Publisher{client: c, cfg: cfg, now: time.Now}
}

// Publish sends res on the configured topic and waits for delivery
// according to the QoS level.
func (p *Publisher) Publish(ctx context.Context, res *pipeline.Result) error {
	if p == nil || p.client == nil {
		return ErrNotConnected
	}
	if res == nil {
		return errors.New("nil result")
	}

	payload, err := json.Marshal(NewMessage(res, p.now()))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.cfg.Timeout):
		return fmt.Errorf("publish to %s: timed out after %v", p.cfg.Topic, p.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// PublishAll publishes every non-nil result and returns the first error.
func (p *Publisher) PublishAll(ctx context.Context, results []*pipeline.Result) error {
	var first error
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := p.Publish(ctx, r); err != nil {
			slog.Warn("Failed to publish result", "source", r.Source, "error", err)
			if first == nil {
				first = err
			}
			if ctx.Err() != nil {
				return first
			}
		}
	}
	return first
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
	p.client = nil
}
