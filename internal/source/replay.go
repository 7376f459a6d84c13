// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// Replay cycles through the lines of a recorded NMEA file, one line per
// interval, wrapping to the first line after the last.
type Replay struct {
	lines    []string
	interval time.Duration
	clock    clockwork.Clock
	next     int
}

// NewReplay loads the recording at path. The file is read once and closed
// before NewReplay returns.
func NewReplay(path string, interval time.Duration, clock clockwork.Clock) (*Replay, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s contains no sentences", ErrSourceUnavailable, path)
	}

	return &Replay{lines: lines, interval: interval, clock: clock}, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrSourceUnavailable, path, err)
	}
	return lines, nil
}

// Len returns the number of lines in the recording.
func (r *Replay) Len() int { return len(r.lines) }

func (r *Replay) Run(ctx context.Context, emit func(line string)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.next >= len(r.lines) {
			r.next = 0
		}
		emit(r.lines[r.next])
		r.next++

		if err := wait(ctx, r.clock, r.interval); err != nil {
			return err
		}
	}
}
