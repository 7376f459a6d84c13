// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/metrics"
)

// DefaultSendTimeout bounds one write to one subscriber.
const DefaultSendTimeout = 2 * time.Second

var errSendTimeout = errors.New("send timed out")

// Conn is the part of a websocket connection the registry writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Result summarises one Broadcast.
type Result struct {
	Attempted int // sends started
	Delivered int
	Failed    int // write error or timeout; the subscriber was removed
	Skipped   int // previous write still in flight
}

type subscriber struct {
	id        string
	conn      Conn
	writeMu   sync.Mutex
	open      atomic.Bool
	closeOnce sync.Once
}

func (s *subscriber) closeTransport() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

// Registry tracks live subscribers and fans records out to them.
// All methods are safe for concurrent use; none holds a lock while
// writing to a subscriber.
type Registry struct {
	subs        sync.Map // id -> *subscriber
	count       atomic.Int64
	sendTimeout time.Duration
	clock       clockwork.Clock
}

// Option configures a Registry.
type Option func(*Registry)

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithClock sets the clock used for write deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sendTimeout: DefaultSendTimeout,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers conn and returns its new unique id.
func (r *Registry) Subscribe(conn Conn) string {
	sub := &subscriber{id: uuid.NewString(), conn: conn}
	sub.open.Store(true)
	r.subs.Store(sub.id, sub)
	r.count.Add(1)
	metrics.Subscribers.Inc()

	slog.Info("Subscriber connected", "subscriber_id", sub.id, "subscribers", r.Count())
	return sub.id
}

// Unsubscribe removes id. Unknown or already removed ids are ignored.
// The caller keeps ownership of the transport.
func (r *Registry) Unsubscribe(id string) {
	value, ok := r.subs.LoadAndDelete(id)
	if !ok {
		return
	}
	sub := value.(*subscriber)
	sub.open.Store(false)
	r.count.Add(-1)
	metrics.Subscribers.Dec()

	slog.Info("Subscriber disconnected", "subscriber_id", id, "subscribers", r.Count())
}

// drop removes a subscriber after a failed send and closes its transport.
func (r *Registry) drop(sub *subscriber, err error) {
	sub.open.Store(false)
	if r.subs.CompareAndDelete(sub.id, sub) {
		r.count.Add(-1)
		metrics.Subscribers.Dec()
		slog.Warn("Subscriber removed after failed send", "subscriber_id", sub.id, "error", err)
	}
	sub.closeTransport()
}

// Count returns the number of registered subscribers.
func (r *Registry) Count() int {
	return int(r.count.Load())
}

type sendOutcome struct {
	sub *subscriber
	err error
}

// Broadcast serialises fix once and writes it to every open subscriber
// concurrently. It returns once every send finished or the send timeout
// elapsed, whichever comes first.
func (r *Registry) Broadcast(fix gps.SatelliteFix) Result {
	var result Result

	payload, err := json.Marshal(fix)
	if err != nil {
		slog.Error("Failed to encode record for broadcast", "error", err)
		return result
	}
	metrics.Broadcasts.Inc()

	var targets []*subscriber
	r.subs.Range(func(_, value any) bool {
		sub := value.(*subscriber)
		if !sub.open.Load() {
			return true
		}
		if !sub.writeMu.TryLock() {
			result.Skipped++
			metrics.Sends.WithLabelValues("skipped").Inc()
			return true
		}
		targets = append(targets, sub)
		return true
	})

	// Buffered for every target so late senders never block after a timeout.
	outcomes := make(chan sendOutcome, len(targets))
	pending := make(map[*subscriber]struct{}, len(targets))
	for _, sub := range targets {
		sub := sub // per-iteration copy; go.mod targets go1.21 loop semantics
		result.Attempted++
		pending[sub] = struct{}{}
		go func() {
			err := r.write(sub, websocket.TextMessage, payload)
			// Unlock before reporting so the next Broadcast finds the
			// subscriber free once this one has returned.
			sub.writeMu.Unlock()
			outcomes <- sendOutcome{sub: sub, err: err}
		}()
	}

	if len(pending) == 0 {
		return result
	}

	timer := r.clock.NewTimer(r.sendTimeout)
	defer timer.Stop()

	for len(pending) > 0 {
		select {
		case out := <-outcomes:
			delete(pending, out.sub)
			if out.err != nil {
				result.Failed++
				metrics.Sends.WithLabelValues("failed").Inc()
				r.drop(out.sub, out.err)
				continue
			}
			result.Delivered++
			metrics.Sends.WithLabelValues("delivered").Inc()
		case <-timer.Chan():
			for sub := range pending {
				result.Failed++
				metrics.Sends.WithLabelValues("failed").Inc()
				r.drop(sub, errSendTimeout)
			}
			return result
		}
	}
	return result
}

// SendTo writes message to a single subscriber. Unknown or closed ids, and
// subscribers with a write already in flight, are ignored.
func (r *Registry) SendTo(id string, message []byte) {
	value, ok := r.subs.Load(id)
	if !ok {
		return
	}
	sub := value.(*subscriber)
	if !sub.open.Load() || !sub.writeMu.TryLock() {
		return
	}
	defer sub.writeMu.Unlock()

	if err := r.write(sub, websocket.TextMessage, message); err != nil {
		r.drop(sub, err)
	}
}

// CloseAll sends a close frame carrying reason to every subscriber, closes
// their transports and empties the registry.
func (r *Registry) CloseAll(reason string) {
	frame := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)

	var wg sync.WaitGroup
	r.subs.Range(func(key, value any) bool {
		sub := value.(*subscriber)
		if _, loaded := r.subs.LoadAndDelete(key); !loaded {
			return true
		}
		sub.open.Store(false)
		r.count.Add(-1)
		metrics.Subscribers.Dec()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if sub.writeMu.TryLock() {
				_ = r.write(sub, websocket.CloseMessage, frame)
				sub.writeMu.Unlock()
			}
			sub.closeTransport()
		}()
		return true
	})
	wg.Wait()
}

// write performs one deadline-bounded write. Callers hold sub.writeMu.
func (r *Registry) write(sub *subscriber, messageType int, data []byte) error {
	start := r.clock.Now()
	if err := sub.conn.SetWriteDeadline(start.Add(r.sendTimeout)); err != nil {
		return err
	}
	err := sub.conn.WriteMessage(messageType, data)
	metrics.SendDuration.Observe(r.clock.Since(start).Seconds())
	return err
}
