// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

// FixedSentence is emitted on every tick in fixed mode.
const FixedSentence = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"

// Base position the generator drifts around (Munich).
const (
	baseLatitude  = 48.1173
	baseLongitude = 11.5167
	baseAltitude  = 545.4
)

// satellite is one simulated space vehicle in the GSV rotation.
type satellite struct {
	id        int
	elevation float64
	azimuth   float64
	snr       float64
}

var constellation = []satellite{
	{id: 1, elevation: 40, azimuth: 83, snr: 41},
	{id: 2, elevation: 17, azimuth: 123, snr: 39},
	{id: 3, elevation: 5, azimuth: 235, snr: 36},
	{id: 4, elevation: 10, azimuth: 302, snr: 38},
}

// SyntheticOptions configures NewSynthetic.
type SyntheticOptions struct {
	Interval time.Duration
	// Fixed repeats FixedSentence instead of generating a moving track.
	Fixed bool
	Clock clockwork.Clock
}

// Synthetic generates smoothly changing NMEA sentences. Generated lines
// alternate between a GGA fix and a GSV satellite report; the output for
// a given step is fully determined by the step number and the clock.
type Synthetic struct {
	interval time.Duration
	fixed    bool
	clock    clockwork.Clock
	step     int
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(opts SyntheticOptions) *Synthetic {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Synthetic{interval: opts.Interval, fixed: opts.Fixed, clock: opts.Clock}
}

func (s *Synthetic) Run(ctx context.Context, emit func(line string)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		emit(s.Sentence(s.step))
		s.step++

		if err := wait(ctx, s.clock, s.interval); err != nil {
			return err
		}
	}
}

// Sentence returns the line generated for step.
func (s *Synthetic) Sentence(step int) string {
	if s.fixed {
		return FixedSentence
	}
	now := s.clock.Now().UTC()
	if step%2 == 0 {
		return ggaSentence(now, float64(step/2))
	}
	return gsvSentence(float64(step / 2))
}

// ggaSentence walks a small circle around the base position.
func ggaSentence(now time.Time, epoch float64) string {
	lat := baseLatitude + 0.001*math.Sin(epoch*0.1)
	lon := baseLongitude + 0.001*math.Cos(epoch*0.1)
	alt := baseAltitude + 2*math.Sin(epoch*0.05)
	sats := 7 + int(epoch)%3

	latRaw, latHemi := gps.EncodeLatitude(lat)
	lonRaw, lonHemi := gps.EncodeLongitude(lon)
	payload := fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,0.9,%.1f,M,46.9,M,,",
		now.Format("150405"), latRaw, latHemi, lonRaw, lonHemi, sats, alt)
	return "$" + payload + "*" + nmea.Checksum(payload)
}

// gsvSentence rotates the simulated constellation slowly in azimuth and
// lets signal strength wander a few dB.
func gsvSentence(epoch float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GPGSV,1,1,%02d", len(constellation))
	for i, sat := range constellation {
		az := math.Mod(sat.azimuth+epoch*0.5, 360)
		el := math.Max(0, sat.elevation+3*math.Sin(epoch*0.02+float64(i)))
		snr := sat.snr + 3*math.Sin(epoch*0.3+float64(i))
		fmt.Fprintf(&b, ",%02d,%02d,%03d,%02d", sat.id, int(math.Round(el)), int(az), int(math.Round(snr)))
	}
	payload := b.String()
	return "$" + payload + "*" + nmea.Checksum(payload)
}
