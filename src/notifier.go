package main

import (
	// stdlib
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"time"

	// internal
	"github.com/grigone/detweb/pkg/config"

	// external
	mqtt "github.com/soypat/natiu-mqtt"
)

// Summary is the per-finished-request payload published to the broker
type Summary struct {
	Job    string         `json:"job"`
	Kind   string         `json:"kind"`
	Frames int            `json:"frames,omitempty"`
	Counts map[string]int `json:"counts"`
}

// notifier publishes detection summaries over MQTT. Broker trouble is never
// fatal to the app: it logs and bows out, and the webserver's non-blocking
// sends just drop on the floor.
func notifier(
	ctx context.Context,
	parent_logger *slog.Logger,
	cfg *config.ConfigFile,
	in <-chan Summary,
) error {
	logger := parent_logger.With("coroutine", "notifier")

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 2048)},
		OnPub: func(pub_head mqtt.Header, var_pub mqtt.VariablesPublish, r io.Reader) error {
			message, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			logger.Info("Recieved", "header", pub_head.String(), "message", message)
			return nil
		},
	})

	connection, err := net.Dial("tcp", cfg.Mqtt.Broker)
	if err != nil {
		logger.Warn("Broker unreachable, summaries disabled", "broker", cfg.Mqtt.Broker, "error", err)
		return nil
	}
	defer connection.Close()

	connection_ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	err = client.Connect(connection_ctx, connection, &mqtt.VariablesConnect{
		ClientID: []byte(cfg.Mqtt.ClientID),
	})
	if err != nil {
		logger.Warn("Broker handshake failed, summaries disabled", "broker", cfg.Mqtt.Broker, "error", err)
		return nil
	}

	pub_flags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	if err != nil {
		return err
	}

	logger.Info("Connected", "broker", cfg.Mqtt.Broker, "topic", cfg.Mqtt.Topic)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notifier cancelled by context")
			return context.Canceled
		case summary := <-in:
			payload, err := json.Marshal(summary)
			if err != nil {
				logger.Error("Can't marshal summary", "error", err)
				continue
			}
			err = client.PublishPayload(pub_flags, mqtt.VariablesPublish{
				TopicName: []byte(cfg.Mqtt.Topic),
			}, payload)
			if err != nil {
				logger.Warn("Publish failed", "topic", cfg.Mqtt.Topic, "error", err)
			}
		}
	}
}
