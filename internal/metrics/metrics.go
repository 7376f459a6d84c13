// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	// LinesRead counts raw lines delivered by the telemetry source.
	LinesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_lines_read_total",
			Help: "Raw NMEA lines read from the telemetry source",
		},
	)

	// RecordsDecoded counts decoded records by sentence kind.
	RecordsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_records_decoded_total",
			Help: "Satellite records decoded by sentence kind",
		},
		[]string{"kind"},
	)

	// Diagnostics counts lines that produced no records, by diagnostic kind.
	Diagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_decode_diagnostics_total",
			Help: "Decode diagnostics by kind",
		},
		[]string{"kind"},
	)

	// LoopPanics counts recovered panics while handling a line.
	LoopPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_loop_panics_total",
			Help: "Recovered panics in the ingestion loop",
		},
	)

	// MirrorFailures counts failed MQTT mirror publishes.
	MirrorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_mirror_failures_total",
			Help: "Records that could not be mirrored to MQTT",
		},
	)
)

// Persistence metrics
var (
	// PersistFailures counts records that could not be stored.
	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_persist_failures_total",
			Help: "Records that failed to persist",
		},
	)

	// StoreOpDuration tracks persistence latency in seconds.
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"backend", "operation"},
	)

	// CircuitBreakerState tracks the store breaker (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tracker_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Broadcast metrics
var (
	// Broadcasts counts broadcast rounds.
	Broadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_broadcasts_total",
			Help: "Records broadcast to subscribers",
		},
	)

	// Sends counts individual subscriber sends by outcome
	// (delivered, failed, skipped).
	Sends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_subscriber_sends_total",
			Help: "Subscriber sends by outcome",
		},
		[]string{"outcome"},
	)

	// SendDuration tracks a single subscriber write in seconds.
	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_subscriber_send_duration_seconds",
			Help:    "Time taken to write one message to one subscriber",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
	)

	// Subscribers tracks currently registered subscribers.
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_subscribers_connected",
			Help: "Currently connected live subscribers",
		},
	)
)
