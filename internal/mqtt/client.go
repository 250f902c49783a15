package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"openweather-device/internal/config"
	"openweather-device/internal/telemetry"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TopicRoot is the OpenChirp device namespace.
const TopicRoot = "openchirp/device"

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Publisher owns one broker connection per poll cycle and publishes each
// measurement on its own transducer topic.
type Publisher struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool
}

// BrokerURL returns the paho broker address for cfg.
func BrokerURL(cfg config.Config) string {
	scheme := "ssl"
	if !cfg.MQTTTLS {
		scheme = "tcp"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.MQTTHost, cfg.MQTTPort)
}

// DeviceTopic is the subscription filter for the device namespace.
func DeviceTopic(user string) string {
	return TopicRoot + "/" + user + "/#"
}

// TransducerTopic is the topic a single measurement is published on.
func TransducerTopic(user, name string) string {
	return TopicRoot + "/" + user + "/" + name
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		cfg:    cfg,
		logger: logger,
	}
	p.client = mqtt.NewClient(clientOptions(cfg, p))
	return p
}

// clientOptions authenticates as the device: client id and username are the
// device user, the token is the password.
func clientOptions(cfg config.Config, p *Publisher) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg))
	opts.SetClientID(cfg.MQTTUser)
	opts.SetUsername(cfg.MQTTUser)
	opts.SetPassword(cfg.MQTTToken)
	if cfg.MQTTTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.MQTTHost,
		})
	}

	opts.SetCleanSession(true)

	// Each cycle connects from scratch; no retry inside a cycle.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(30 * time.Second)

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(p.onConnectionLost)
	return opts
}

func (p *Publisher) onConnect(c mqtt.Client) {
	p.setConnected(true)
	p.logger.Info("mqtt connected", "broker", p.cfg.MQTTHost, "port", p.cfg.MQTTPort)
	p.subscribeDevice(c)
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	p.setConnected(false)
	p.logger.Warn("mqtt connection lost", "error", err)
}

// Connect establishes the broker connection, waiting until it completes,
// fails, or ctx is done.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// OnConnectHandler runs on its own goroutine and may not have fired yet.
			p.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			p.client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
}

// Publish sends one measurement. The payload is the bare decimal value.
func (p *Publisher) Publish(name string, value float64) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	topic := TransducerTopic(p.cfg.MQTTUser, name)
	payload := telemetry.Measurement{Name: name, Value: value}.Payload()

	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Debug("published", "topic", topic, "payload", string(payload))
	return nil
}

// Sink adapts Publish to telemetry.Sink. Failures are logged here and not
// reported back to the caller.
func (p *Publisher) Sink() telemetry.Sink {
	return func(name string, value float64) {
		if err := p.Publish(name, value); err != nil {
			p.logger.Error("failed to publish measurement", "name", name, "value", value, "error", err)
		}
	}
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect closes the broker connection. Safe to call when already
// disconnected; the publisher can Connect again afterwards.
func (p *Publisher) Disconnect() {
	p.setConnected(false)
	if p.client != nil && p.client.IsConnectionOpen() {
		p.client.Disconnect(disconnectQuiesce)
	}
	p.logger.Debug("mqtt disconnected")
}

func (p *Publisher) subscribeDevice(c mqtt.Client) {
	topic := DeviceTopic(p.cfg.MQTTUser)
	token := c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		p.logger.Debug("mqtt message", "topic", msg.Topic(), "payload", string(msg.Payload()))
	})
	go func() {
		done := token.WaitTimeout(publishTimeout)
		err := token.Error()
		switch {
		case done && err == nil:
			p.logger.Debug("subscribed to mqtt topic", "topic", topic)
		case !p.IsConnected():
			// A short cycle can disconnect before the SUBACK arrives.
			p.logger.Debug("subscribe abandoned, connection closed", "topic", topic, "error", err)
		case !done:
			p.logger.Warn("subscribe timeout", "topic", topic)
		default:
			p.logger.Warn("subscribe failed", "topic", topic, "error", err)
		}
	}()
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
