// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/satellite_tracker/internal/config"
	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/logging"
	"github.com/relabs-tech/satellite_tracker/internal/relay"
	"github.com/relabs-tech/satellite_tracker/internal/source"
)

// FixPublisher is the slice of relay.Publisher the producer needs.
type FixPublisher interface {
	Publish(ctx context.Context, fix gps.SatelliteFix) error
}

// RunGPSProducer reads the configured telemetry source and publishes every
// decoded fix to MQTT, without the web server or persistence. Useful on a
// receiver board that only forwards to a tracker elsewhere.
func RunGPSProducer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}

	logCloser := logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer logCloser.Close()

	clock := clockwork.NewRealClock()
	src, err := source.New(cfg, clock)
	if err != nil {
		return err
	}

	client, err := relay.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-producer")
	if err != nil {
		return err
	}

	publisher := relay.NewPublisher(client, cfg.MQTTTopic)
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return produce(ctx, src, gps.NewDecoder(clock), publisher)
}

// produce runs src until it stops, publishing each decoded record. Decode
// and publish failures are logged and the line is skipped.
func produce(ctx context.Context, src source.Source, decoder *gps.Decoder, pub FixPublisher) error {
	log := logging.WithComponent("producer")
	var published int
	err := src.Run(ctx, func(line string) {
		fixes, diag := decoder.Decode(line)
		if diag != nil {
			log.Debug("Skipped line", "reason", diag.Kind, "detail", diag.Detail)
			return
		}
		for _, fix := range fixes {
			if err := pub.Publish(ctx, fix); err != nil {
				log.Warn("Failed to publish record", "kind", fix.SentenceKind, "error", err)
				continue
			}
			published++
		}
	})
	log.Info("Producer stopped", "published", published)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("telemetry source: %w", err)
	}
	return nil
}
