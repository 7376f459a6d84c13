// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/metrics"
)

// Breaker guards a Store with a circuit breaker so that, once the database
// is down, appends fail immediately with ErrUnavailable instead of each
// waiting for its own timeout.
type Breaker struct {
	Store
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker trips after 5 consecutive failures and probes again after 30s.
func NewBreaker(name string, inner Store) *Breaker {
	return newBreaker(name, inner, gobreaker.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func newBreaker(name string, inner Store, settings gobreaker.Settings) *Breaker {
	settings.Name = name
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	return &Breaker{Store: inner, name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (b *Breaker) Append(ctx context.Context, fix gps.SatelliteFix) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.Store.Append(ctx, fix)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, b.name, err)
	}
	return err
}

func (b *Breaker) Query(ctx context.Context, from, to time.Time, system string) ([]gps.SatelliteFix, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.Store.Query(ctx, from, to, system)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, b.name, err)
		}
		return nil, err
	}
	fixes, _ := result.([]gps.SatelliteFix)
	return fixes, nil
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
