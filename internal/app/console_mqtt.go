// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/relabs-tech/satellite_tracker/internal/config"
	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/logging"
	"github.com/relabs-tech/satellite_tracker/internal/relay"
)

// RunConsoleMQTT prints every fix the tracker mirrors to MQTT, one line per
// record, until Ctrl+C.
func RunConsoleMQTT(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not set")
	}

	logCloser := logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer logCloser.Close()

	client, err := relay.Connect(cfg.MQTTBroker, cfg.MQTTClientID+"-console")
	if err != nil {
		return err
	}

	if err := relay.Subscribe(client, cfg.MQTTTopic, func(f gps.SatelliteFix) {
		printFix(os.Stdout, f)
	}); err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("Console shutting down")
	client.Disconnect(250)
	return nil
}

func printFix(w io.Writer, f gps.SatelliteFix) {
	ts := f.Timestamp.UTC().Format("15:04:05")
	switch f.SentenceKind {
	case gps.KindGSV:
		fmt.Fprintf(w, "[%s %-3s] %s sat=%s el=%s az=%s snr=%s\n",
			ts, f.SentenceKind, f.System,
			intField(f.SatelliteID), floatField(f.ElevationDeg, 0), floatField(f.AzimuthDeg, 0), intField(f.SignalToNoiseRatio))
	case gps.KindGSA:
		fmt.Fprintf(w, "[%s %-3s] %s inUse=%s pdop=%s hdop=%s vdop=%s fix=%t\n",
			ts, f.SentenceKind, f.System,
			intField(f.SatellitesInUse), floatField(f.PDOP, 1), floatField(f.HDOP, 1), floatField(f.VDOP, 1), f.UsedInFix)
	default:
		var extra strings.Builder
		if f.SatellitesInUse != nil {
			fmt.Fprintf(&extra, " sats=%d", *f.SatellitesInUse)
		}
		if f.SpeedKnots != nil {
			fmt.Fprintf(&extra, " speed=%.1fkn", *f.SpeedKnots)
		}
		if f.DirectionDeg != nil {
			fmt.Fprintf(&extra, " course=%.1f°", *f.DirectionDeg)
		}
		fmt.Fprintf(w, "[%s %-3s] %s lat=%s lon=%s alt=%s fix=%t%s\n",
			ts, f.SentenceKind, f.System,
			floatField(f.Latitude, 6), floatField(f.Longitude, 6), floatField(f.Altitude, 1), f.UsedInFix, extra.String())
	}
}

func floatField(v *float64, precision int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", precision, *v)
}

func intField(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
