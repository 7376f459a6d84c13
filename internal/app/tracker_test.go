// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/satellite_tracker/internal/config"
	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/source"
)

func TestRunTracker_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.UpdateIntervalMs = 10

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runTracker(ctx, cfg, clockwork.NewRealClock()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not shut down")
	}
}

func TestRunTracker_MissingReplayFile(t *testing.T) {
	cfg := config.Default()
	cfg.SourceKind = config.SourceReplay
	cfg.SourcePath = filepath.Join(t.TempDir(), "missing.nmea")

	err := runTracker(context.Background(), cfg, clockwork.NewRealClock())
	require.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestPrintFix(t *testing.T) {
	decoder := gps.NewDecoder(clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 35, 19, 0, time.UTC)))

	var buf bytes.Buffer
	for _, line := range []string{
		source.FixedSentence,
		"$GPGSV,2,1,08,01,40,083,41,02,17,123,",
	} {
		fixes, _ := decoder.Decode(line)
		for _, f := range fixes {
			printFix(&buf, f)
		}
	}

	out := buf.String()
	assert.Contains(t, out, "[12:35:19 GGA] GPS lat=48.117300 lon=11.516667 alt=545.4 fix=true sats=8")
	assert.Contains(t, out, "[12:35:19 GSV] GPS sat=1 el=40 az=83 snr=41")
	assert.Contains(t, out, "[12:35:19 GSV] GPS sat=2 el=17 az=123 snr=-")
}
