// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/satellite_tracker/internal/config"
	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/hub"
	"github.com/relabs-tech/satellite_tracker/internal/ingest"
	"github.com/relabs-tech/satellite_tracker/internal/logging"
	"github.com/relabs-tech/satellite_tracker/internal/relay"
	"github.com/relabs-tech/satellite_tracker/internal/source"
	"github.com/relabs-tech/satellite_tracker/internal/store"
)

const shutdownTimeout = 5 * time.Second

// RunTracker loads configuration from configPath and runs the ingestion
// loop and the HTTP server until SIGINT/SIGTERM.
func RunTracker(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser := logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runTracker(ctx, cfg, clockwork.NewRealClock())
}

func runTracker(ctx context.Context, cfg *config.Config, clock clockwork.Clock) error {
	log := logging.WithComponent("tracker")
	log.Info("Starting satellite tracker",
		"source", cfg.SourceKind, "store", cfg.StoreKind, "addr", cfg.HTTPAddr)

	st, err := store.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreKind, err)
	}
	defer st.Close()

	src, err := source.New(cfg, clock)
	if err != nil {
		return fmt.Errorf("failed to create %s source: %w", cfg.SourceKind, err)
	}

	registry := hub.New(hub.WithSendTimeout(cfg.SendTimeout()), hub.WithClock(clock))

	opts := []ingest.Option{ingest.WithStoreTimeout(cfg.StoreTimeout()), ingest.WithClock(clock)}
	if cfg.MQTTBroker != "" {
		client, err := relay.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return err
		}
		publisher := relay.NewPublisher(client, cfg.MQTTTopic)
		defer publisher.Close()
		opts = append(opts, ingest.WithMirror(publisher))
	}

	loop := ingest.New(src, gps.NewDecoder(clock), registry, st, opts...)
	server := NewServer(cfg.HTTPAddr, cfg.WebRoot, registry, st, loop, clock)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A failed source stays visible on /health; the server keeps
		// serving history until the process is stopped.
		if err := loop.Run(gctx); err != nil {
			log.Error("Ingestion stopped", "error", err)
		}
		return nil
	})

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		registry.CloseAll("server shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
