// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/satellite_tracker/internal/config"
)

// ErrSourceUnavailable wraps failures to acquire the backing file or port.
var ErrSourceUnavailable = errors.New("telemetry source unavailable")

// Source is anything that can produce raw NMEA lines over time: a
// recorded file, a synthetic generator or a live receiver.
//
// Run calls emit once per line, in order, from a single goroutine, and
// returns when ctx is cancelled (with ctx.Err()) or the source fails.
// Any file or port acquired by Run is released before it returns.
type Source interface {
	Run(ctx context.Context, emit func(line string)) error
}

// New builds the source selected by cfg.SourceKind. Replay files are read
// here, so a missing recording fails at startup.
func New(cfg *config.Config, clock clockwork.Clock) (Source, error) {
	switch cfg.SourceKind {
	case config.SourceReplay:
		replay, err := NewReplay(cfg.SourcePath, cfg.UpdateInterval(), clock)
		if err != nil {
			return nil, err
		}
		return replay, nil
	case config.SourceSynthetic:
		return NewSynthetic(SyntheticOptions{
			Interval: cfg.UpdateInterval(),
			Fixed:    cfg.SyntheticFixed,
			Clock:    clock,
		}), nil
	case config.SourceSerial:
		port, err := NewSerial(SerialOptions{
			PortName: cfg.SerialPort,
			BaudRate: cfg.SerialBaudRate,
			DataBits: cfg.SerialDataBits,
			StopBits: cfg.SerialStopBits,
			Parity:   cfg.SerialParity,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
	}
}

// wait suspends for d or until ctx is done.
func wait(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
