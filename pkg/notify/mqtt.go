// Package notify forwards detector events to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/realtime-ai/wakeword/pkg/events"
)

// MQTTConfig holds the broker connection and topic settings.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic may contain {device_id}.
	Topic    string
	DeviceID string
	QoS      byte
	// Buffer is the capacity of the event subscription channel.
	Buffer int
}

// Connect opens a paho client with auto-reconnect.
func Connect(cfg MQTTConfig) (mqtt.Client, error) {
	logger := log.With().Str("component", "notify").Logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the JSON body published for each event.
type Message struct {
	Event      string    `json:"event"`
	DetectorID string    `json:"detector_id"`
	DeviceID   string    `json:"device_id"`
	Confidence float64   `json:"confidence,omitempty"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MQTTPublisher publishes detections and status changes.
type MQTTPublisher struct {
	client   Client
	topic    string
	deviceID string
	qos      byte
	buffer   int
	logger   zerolog.Logger
}

// NewMQTTPublisher creates a publisher over client.
func NewMQTTPublisher(client Client, cfg MQTTConfig) *MQTTPublisher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	return &MQTTPublisher{
		client:   client,
		topic:    formatTopic(cfg.Topic, cfg.DeviceID),
		deviceID: cfg.DeviceID,
		qos:      cfg.QoS,
		buffer:   cfg.Buffer,
		logger:   log.With().Str("component", "notify").Logger(),
	}
}

// Topic returns the resolved topic.
func (p *MQTTPublisher) Topic() string { return p.topic }

// Start subscribes to bus before returning, then forwards detection and
// status events on a new goroutine until ctx is done. The returned channel
// is closed once forwarding has stopped and the subscription is removed.
func (p *MQTTPublisher) Start(ctx context.Context, bus events.Bus) <-chan struct{} {
	ch := make(chan events.Event, p.buffer)
	types := []events.EventType{events.EventWakeWordDetected, events.EventStatusChanged}
	for _, t := range types {
		bus.Subscribe(t, ch)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			for _, t := range types {
				bus.Unsubscribe(t, ch)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				if err := p.Publish(evt); err != nil {
					p.logger.Error().Err(err).Str("event", evt.Type.String()).Msg("failed to publish event")
				}
			}
		}
	}()
	return done
}

// Publish sends one event. Events other than detections and status
// changes are ignored.
func (p *MQTTPublisher) Publish(evt events.Event) error {
	msg, ok := p.message(evt)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", msg.Event, err)
	}

	token := p.client.Publish(p.topic, p.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish %s event: %w", msg.Event, token.Error())
	}
	p.logger.Debug().Str("topic", p.topic).Str("event", msg.Event).Msg("event published")
	return nil
}

func (p *MQTTPublisher) message(evt events.Event) (Message, bool) {
	msg := Message{DeviceID: p.deviceID, Timestamp: evt.Timestamp}
	switch payload := evt.Payload.(type) {
	case events.Detection:
		msg.Event = "detected"
		msg.DetectorID = payload.DetectorID
		msg.Confidence = payload.Confidence
		if !payload.At.IsZero() {
			msg.Timestamp = payload.At
		}
	case events.StatusChange:
		msg.Event = "status"
		msg.DetectorID = payload.DetectorID
		msg.Status = string(payload.Status)
		msg.Reason = payload.Reason
	default:
		return Message{}, false
	}
	return msg, true
}

// formatTopic replaces the {device_id} placeholder.
func formatTopic(pattern, deviceID string) string {
	return strings.ReplaceAll(pattern, "{device_id}", deviceID)
}
