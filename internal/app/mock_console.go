// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/source"
)

// RunMockConsole prints decoded synthetic telemetry to stdout. No receiver,
// broker or config file needed; handy to check the decoder by eye.
func RunMockConsole() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mockConsole(ctx, os.Stdout, clockwork.NewRealClock(), 500*time.Millisecond)
}

func mockConsole(ctx context.Context, w io.Writer, clock clockwork.Clock, interval time.Duration) error {
	decoder := gps.NewDecoder(clock)
	src := source.NewSynthetic(source.SyntheticOptions{Interval: interval, Clock: clock})

	err := src.Run(ctx, func(line string) {
		fixes, _ := decoder.Decode(line)
		for _, f := range fixes {
			printFix(w, f)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
