// Package telemetry mirrors measurements to an MQTT broker alongside the
// LoRaWAN uplink.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"i4.energy/across/currentmon/session"
)

const (
	DefaultTopic          = "currentmon/measurements"
	DefaultPublishTimeout = 2 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// ErrPublishTimeout is returned when the broker did not acknowledge a
// publish in time.
var ErrPublishTimeout = errors.New("mqtt: publish timed out")

// Options configures the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	PublishTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// Message is the JSON document published for every measurement.
type Message struct {
	CurrentA  float64   `json:"current_a"`
	CurrentMA int16     `json:"current_ma"`
	Payload   string    `json:"payload"`
	Cycle     uint64    `json:"cycle"`
	DevAddr   string    `json:"dev_addr"`
	Timestamp time.Time `json:"timestamp"`
	Unit      string    `json:"unit"`
}

// NewMessage renders m with the current rounded to milliamp precision.
func NewMessage(m session.Measurement) Message {
	return Message{
		CurrentA:  decimal.NewFromFloat(m.Current).Round(3).InexactFloat64(),
		CurrentMA: m.Payload.MilliAmps,
		Payload:   m.Payload.Hex(),
		Cycle:     m.Cycle,
		DevAddr:   m.DevAddr,
		Timestamp: m.Timestamp.UTC(),
		Unit:      "A",
	}
}

// MQTT publishes measurements with QoS 0. It implements session.Publisher.
type MQTT struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
	logger  *zap.Logger
}

// Connect dials the broker. If the broker is not reachable within the
// connect timeout the client keeps retrying in the background and the
// returned MQTT is still usable.
func Connect(opts Options) (*MQTT, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	logger := opts.Logger

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetOrderMatters(false)
	co.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", opts.Broker))
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		logger.Warn("MQTT broker not reachable yet, retrying in background", zap.String("broker", opts.Broker))
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", opts.Broker, err)
	}

	return New(client, opts.Topic, opts.PublishTimeout, logger), nil
}

// New wraps an existing client.
func New(client mqtt.Client, topic string, timeout time.Duration, logger *zap.Logger) *MQTT {
	if topic == "" {
		topic = DefaultTopic
	}
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTT{client: client, topic: topic, timeout: timeout, logger: logger}
}

func (p *MQTT) Publish(ctx context.Context, m session.Measurement) error {
	body, err := json.Marshal(NewMessage(m))
	if err != nil {
		return fmt.Errorf("mqtt: marshal measurement: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", p.topic, err)
	}
	p.logger.Debug("Published measurement", zap.String("topic", p.topic), zap.Uint64("cycle", m.Cycle))
	return nil
}

// Close disconnects, allowing in-flight work a short grace period.
func (p *MQTT) Close() {
	p.client.Disconnect(250)
}
