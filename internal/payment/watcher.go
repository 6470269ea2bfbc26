package payment

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

// StatusEvent is a change in an order's status.
type StatusEvent struct {
	OrderID  string
	Previous core.OrderStatus // empty on the first observation
	Current  *core.OrderSnapshot
	At       time.Time
}

// Terminal reports whether the order can no longer change.
func (e StatusEvent) Terminal() bool {
	return e.Current != nil && e.Current.Status.IsTerminal()
}

// Watcher polls an order's status until it reaches a terminal state.
type Watcher struct {
	reader   StatusReader
	push     Updates
	orderID  string
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	onChange func(StatusEvent)
	events   chan StatusEvent

	mu   sync.Mutex
	last *core.OrderSnapshot
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPush wakes the watcher whenever the push source reports a change.
func WithPush(u Updates) WatcherOption {
	return func(w *Watcher) { w.push = u }
}

// WithWatcherClock sets the clock that drives polling.
func WithWatcherClock(c clockwork.Clock) WatcherOption {
	return func(w *Watcher) { w.clock = c }
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// OnChange registers a callback run for every event, before it is sent on
// Events.
func OnChange(fn func(StatusEvent)) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// NewWatcher creates a watcher for orderID.
func NewWatcher(reader StatusReader, orderID string, interval time.Duration, opts ...WatcherOption) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w := &Watcher{
		reader:   reader,
		orderID:  orderID,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
		events:   make(chan StatusEvent, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events returns the channel of status changes. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan StatusEvent {
	return w.events
}

// Last returns the most recent snapshot seen, or nil. It is safe to call
// while Run is polling.
func (w *Watcher) Last() *core.OrderSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Run polls until the order reaches a terminal status (returning nil) or
// ctx is done (returning its error). Read errors are logged and retried on
// the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	if w.reader == nil {
		return tuneserrors.ErrBackendUnavailable
	}

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	var push <-chan core.OrderSnapshot
	if w.push != nil {
		ch, err := w.push.Updates(ctx, w.orderID)
		if err != nil {
			w.logger.Warn("realtime updates unavailable, polling only", zap.Error(err))
		} else {
			push = ch
		}
	}

	if w.poll(ctx) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if w.poll(ctx) {
				return nil
			}
		case _, ok := <-push:
			if !ok {
				push = nil
				continue
			}
			// Pushed payloads are hints; the read is authoritative.
			if w.poll(ctx) {
				return nil
			}
		}
	}
}

// poll reads the status once and reports whether the order is terminal.
func (w *Watcher) poll(ctx context.Context) bool {
	curr, err := w.reader.OrderStatus(ctx, w.orderID)
	if err != nil {
		w.logger.Debug("status poll failed", zap.String("order_id", w.orderID), zap.Error(err))
		return false
	}

	if ev, ok := diffStatus(w.orderID, w.Last(), curr); ok {
		ev.At = w.clock.Now()
		if w.onChange != nil {
			w.onChange(ev)
		}
		select {
		case w.events <- ev:
		default:
			// Drop event if channel is full
		}
	}
	if curr != nil {
		w.mu.Lock()
		w.last = curr
		w.mu.Unlock()
	}
	return curr != nil && curr.Status.IsTerminal()
}

// diffStatus reports the event for a transition from prev to curr.
func diffStatus(orderID string, prev, curr *core.OrderSnapshot) (StatusEvent, bool) {
	if curr == nil {
		return StatusEvent{}, false
	}
	if prev != nil && prev.Status == curr.Status {
		return StatusEvent{}, false
	}
	ev := StatusEvent{OrderID: orderID, Current: curr}
	if prev != nil {
		ev.Previous = prev.Status
	}
	return ev, true
}
