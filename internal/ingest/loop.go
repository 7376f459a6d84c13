// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/hub"
	"github.com/relabs-tech/satellite_tracker/internal/metrics"
	"github.com/relabs-tech/satellite_tracker/internal/source"
)

// Decoder turns one raw line into records.
type Decoder interface {
	Decode(line string) ([]gps.SatelliteFix, *gps.Diagnostic)
}

// Broadcaster fans a record out to live subscribers.
type Broadcaster interface {
	Broadcast(fix gps.SatelliteFix) hub.Result
}

// Appender persists a record.
type Appender interface {
	Append(ctx context.Context, fix gps.SatelliteFix) error
}

// Publisher mirrors a record to an external sink such as MQTT.
type Publisher interface {
	Publish(ctx context.Context, fix gps.SatelliteFix) error
}

// State is the lifecycle stage of a Loop.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFailed   State = "failed"
	StateStopped  State = "stopped"
)

// Status is a point-in-time view of the loop for health reporting.
type Status struct {
	State     State
	Err       error // source failure when State is StateFailed
	LinesRead uint64
	Records   uint64
	LastLine  time.Time
}

const defaultStoreTimeout = 2 * time.Second

// Loop drives one telemetry source: every line it emits is decoded and
// each resulting record is persisted, broadcast and mirrored, in the order
// the decoder produced them.
type Loop struct {
	source   source.Source
	decoder  Decoder
	registry Broadcaster
	store    Appender
	mirrors  []Publisher

	clock        clockwork.Clock
	storeTimeout time.Duration
	diagLimiter  *rate.Limiter
	errLimiter   *rate.Limiter

	mu     sync.RWMutex
	status Status
}

// Option configures a Loop.
type Option func(*Loop)

// WithMirror adds a sink that receives every record after broadcast.
func WithMirror(p Publisher) Option {
	return func(l *Loop) { l.mirrors = append(l.mirrors, p) }
}

// WithStoreTimeout bounds each Append call.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.storeTimeout = d
		}
	}
}

// WithClock sets the clock used for status timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Loop) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New assembles a loop. store may be nil when persistence is disabled.
func New(src source.Source, decoder Decoder, registry Broadcaster, store Appender, opts ...Option) *Loop {
	l := &Loop{
		source:       src,
		decoder:      decoder,
		registry:     registry,
		store:        store,
		clock:        clockwork.NewRealClock(),
		storeTimeout: defaultStoreTimeout,
		diagLimiter:  rate.NewLimiter(rate.Limit(5), 20),
		errLimiter:   rate.NewLimiter(rate.Limit(5), 20),
		status:       Status{State: StateStarting},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run blocks until ctx is cancelled or the source fails. Cancellation is a
// clean stop and returns nil; a source failure is returned and recorded in
// Status.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StateRunning, nil)
	slog.Info("Ingestion loop started", "source", fmt.Sprintf("%T", l.source))

	err := l.source.Run(ctx, func(line string) { l.handle(ctx, line) })

	if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		l.setState(StateStopped, nil)
		slog.Info("Ingestion loop stopped")
		return nil
	}

	l.setState(StateFailed, err)
	slog.Error("Telemetry source failed", "error", err)
	return fmt.Errorf("telemetry source: %w", err)
}

// Status returns the current loop status.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

func (l *Loop) setState(state State, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = state
	l.status.Err = err
}

// handle processes one line. Nothing that goes wrong here stops the loop.
func (l *Loop) handle(ctx context.Context, line string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LoopPanics.Inc()
			slog.Error("Recovered panic while handling line",
				"panic", r, "line", line, "stack", string(debug.Stack()))
		}
	}()

	metrics.LinesRead.Inc()
	l.mu.Lock()
	l.status.LinesRead++
	l.status.LastLine = l.clock.Now()
	l.mu.Unlock()

	fixes, diag := l.decoder.Decode(line)
	if diag != nil {
		l.logDiagnostic(diag)
	}

	for _, fix := range fixes {
		metrics.RecordsDecoded.WithLabelValues(string(fix.SentenceKind)).Inc()
		if err := l.Forward(ctx, fix); err != nil && l.errLimiter.Allow() {
			slog.Warn("Failed to persist record", "kind", fix.SentenceKind, "error", err)
		}
	}

	if len(fixes) > 0 {
		l.mu.Lock()
		l.status.Records += uint64(len(fixes))
		l.mu.Unlock()
	}
}

// Forward hands one record to every sink. The record is broadcast and
// mirrored even when persistence fails; the persistence error is returned.
func (l *Loop) Forward(ctx context.Context, fix gps.SatelliteFix) error {
	persistErr := l.persist(ctx, fix)

	l.registry.Broadcast(fix)

	for _, mirror := range l.mirrors {
		if err := mirror.Publish(ctx, fix); err != nil {
			metrics.MirrorFailures.Inc()
			if l.errLimiter.Allow() {
				slog.Warn("Failed to mirror record", "kind", fix.SentenceKind, "error", err)
			}
		}
	}
	return persistErr
}

func (l *Loop) persist(ctx context.Context, fix gps.SatelliteFix) error {
	if l.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	if err := l.store.Append(ctx, fix); err != nil {
		metrics.PersistFailures.Inc()
		return err
	}
	return nil
}

func (l *Loop) logDiagnostic(diag *gps.Diagnostic) {
	metrics.Diagnostics.WithLabelValues(string(diag.Kind)).Inc()
	if !l.diagLimiter.Allow() {
		return
	}
	if diag.Kind == gps.DiagUnsupported {
		slog.Debug("Skipping sentence", "reason", diag.Kind, "detail", diag.Detail)
		return
	}
	slog.Warn("Could not decode sentence", "reason", diag.Kind, "detail", diag.Detail, "line", diag.Sentence)
}
