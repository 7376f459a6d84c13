// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
)

// flakyStore fails Append while failing is set.
type flakyStore struct {
	*Memory
	failing bool
	calls   int
}

func (f *flakyStore) Append(ctx context.Context, fix gps.SatelliteFix) error {
	f.calls++
	if f.failing {
		return errors.New("connection refused")
	}
	return f.Memory.Append(ctx, fix)
}

func testBreaker(inner Store) *Breaker {
	return newBreaker("test", inner, gobreaker.Settings{
		MaxRequests: 1,
		Timeout:     100 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

func TestBreaker_PassesThroughWhenHealthy(t *testing.T) {
	ctx := context.Background()
	b := testBreaker(NewMemory(10))

	require.NoError(t, b.Append(ctx, fixAt(0, "GPS")))
	fixes, err := b.Query(ctx, epoch, epoch.Add(time.Second), "")
	require.NoError(t, err)
	assert.Len(t, fixes, 1)
	assert.NoError(t, b.Ping(ctx))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_OpensAndFailsFast(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{Memory: NewMemory(10), failing: true}
	b := testBreaker(inner)

	for i := 0; i < 3; i++ {
		err := b.Append(ctx, fixAt(0, "GPS"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Append(ctx, fixAt(0, "GPS"))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, inner.calls, "open breaker must not reach the store")
}

func TestBreaker_RecoversAfterTimeout(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{Memory: NewMemory(10), failing: true}
	b := testBreaker(inner)

	for i := 0; i < 3; i++ {
		_ = b.Append(ctx, fixAt(0, "GPS"))
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	inner.failing = false
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, b.State())

	require.NoError(t, b.Append(ctx, fixAt(time.Second, "GPS")))
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 1, inner.Len())
}
