// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/satellite_tracker/internal/config"
	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/metrics"
)

// ErrUnavailable is returned when the backing database cannot be reached
// or the circuit breaker is open.
var ErrUnavailable = errors.New("store unavailable")

// Store persists decoded records and answers time-range queries.
type Store interface {
	Append(ctx context.Context, fix gps.SatelliteFix) error
	// Query returns records with from <= timestamp <= to, oldest first.
	// An empty system matches every constellation.
	Query(ctx context.Context, from, to time.Time, system string) ([]gps.SatelliteFix, error)
	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.StoreKind. Network backends are
// wrapped in a circuit breaker.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreKind {
	case config.StoreMemory:
		return NewMemory(cfg.StoreCapacity), nil
	case config.StorePostgres:
		pg, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewBreaker(config.StorePostgres, pg), nil
	case config.StoreRedis:
		rs, err := NewRedis(ctx, cfg.RedisURL, cfg.RedisKey, cfg.StoreCapacity)
		if err != nil {
			return nil, err
		}
		return NewBreaker(config.StoreRedis, rs), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.StoreKind)
	}
}

func observe(backend, operation string, start time.Time) {
	metrics.StoreOpDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
