// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

// DefaultCapacity is the number of records Memory keeps.
const DefaultCapacity = 10000

// Memory keeps the most recent records in a fixed-size ring.
type Memory struct {
	mu   sync.RWMutex
	ring []gps.SatelliteFix
	next int
	full bool
}

// NewMemory creates a ring holding up to capacity records.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{ring: make([]gps.SatelliteFix, capacity)}
}

func (m *Memory) Append(_ context.Context, fix gps.SatelliteFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring[m.next] = fix
	m.next++
	if m.next == len(m.ring) {
		m.next = 0
		m.full = true
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, from, to time.Time, system string) ([]gps.SatelliteFix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []gps.SatelliteFix
	for _, fix := range m.snapshot() {
		if fix.Timestamp.Before(from) || fix.Timestamp.After(to) {
			continue
		}
		if system != "" && fix.System != system {
			continue
		}
		out = append(out, fix)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// snapshot returns stored records in insertion order. Callers hold mu.
func (m *Memory) snapshot() []gps.SatelliteFix {
	if !m.full {
		return m.ring[:m.next]
	}
	out := make([]gps.SatelliteFix, 0, len(m.ring))
	out = append(out, m.ring[m.next:]...)
	return append(out, m.ring[:m.next]...)
}

// Len returns the number of records held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.full {
		return len(m.ring)
	}
	return m.next
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
