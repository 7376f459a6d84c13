// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish before the context or the publish timeout expires.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

const publishTimeout = 2 * time.Second

// Client is the part of a paho client the relay uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Connect dials broker and returns the connected client.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("MQTT connection lost", "broker", broker, "error", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, token.Error())
	}
	slog.Info("Connected to MQTT broker", "broker", broker, "client_id", clientID)
	return client, nil
}

// Publisher mirrors decoded records to an MQTT topic as JSON.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher publishes on topic through client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish sends fix with QoS 0, not retained, and waits for the client to
// hand it off.
func (p *Publisher) Publish(ctx context.Context, fix gps.SatelliteFix) error {
	payload, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("failed to encode fix: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", p.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishTimeout, ctx.Err())
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// Subscribe delivers every fix published on topic to handle. Messages
// that are not valid fixes are logged and dropped.
func Subscribe(client Client, topic string, handle func(gps.SatelliteFix)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var fix gps.SatelliteFix
		if err := json.Unmarshal(msg.Payload(), &fix); err != nil {
			slog.Warn("Dropping malformed MQTT payload", "topic", msg.Topic(), "error", err)
			return
		}
		handle(fix)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	slog.Info("Subscribed to MQTT topic", "topic", topic)
	return nil
}
