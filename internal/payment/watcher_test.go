package payment

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
)

func snap(status core.OrderStatus) *core.OrderSnapshot {
	return &core.OrderSnapshot{ID: "order-1", Status: status}
}

func nextEvent(t *testing.T, w *Watcher) StatusEvent {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events closed early")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status event")
	}
	return StatusEvent{}
}

func TestWatcherPollsUntilTerminal(t *testing.T) {
	reader := &scriptedReader{snaps: []*core.OrderSnapshot{
		nil,
		snap(core.OrderPending),
		snap(core.OrderPending),
		snap(core.OrderCompleted),
	}}
	clock := clockwork.NewFakeClock()
	var seen []StatusEvent
	w := NewWatcher(reader, "order-1", 3*time.Second,
		WithWatcherClock(clock),
		OnChange(func(ev StatusEvent) { seen = append(seen, ev) }))

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	advanceTo := func(calls int) {
		t.Helper()
		clock.Advance(3 * time.Second)
		require.Eventually(t, func() bool { return reader.calls() >= calls }, time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool { return reader.calls() == 1 }, time.Second, time.Millisecond)

	advanceTo(2)
	ev := nextEvent(t, w)
	assert.Equal(t, core.OrderPending, ev.Current.Status)
	assert.Equal(t, core.OrderStatus(""), ev.Previous)
	assert.False(t, ev.Terminal())

	advanceTo(3)
	advanceTo(4)
	ev = nextEvent(t, w)
	assert.Equal(t, core.OrderCompleted, ev.Current.Status)
	assert.Equal(t, core.OrderPending, ev.Previous)
	assert.True(t, ev.Terminal())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after terminal status")
	}
	_, open := <-w.Events()
	assert.False(t, open)
	assert.Len(t, seen, 2)
	assert.Equal(t, core.OrderCompleted, w.Last().Status)
}

func TestWatcherWakesOnPush(t *testing.T) {
	reader := &scriptedReader{snaps: []*core.OrderSnapshot{
		snap(core.OrderPending),
		snap(core.OrderFailed),
	}}
	push := &pushSource{ch: make(chan core.OrderSnapshot, 1)}
	w := NewWatcher(reader, "order-1", time.Hour,
		WithWatcherClock(clockwork.NewFakeClock()),
		WithPush(push))

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	assert.Equal(t, core.OrderPending, nextEvent(t, w).Current.Status)
	push.ch <- core.OrderSnapshot{ID: "order-1", Status: core.OrderFailed}
	assert.Equal(t, core.OrderFailed, nextEvent(t, w).Current.Status)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after pushed terminal status")
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	reader := &scriptedReader{snaps: []*core.OrderSnapshot{snap(core.OrderPending)}}
	w := NewWatcher(reader, "order-1", time.Hour, WithWatcherClock(clockwork.NewFakeClock()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	nextEvent(t, w)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestWatcherLastWhileRunning(t *testing.T) {
	reader := &scriptedReader{snaps: []*core.OrderSnapshot{
		snap(core.OrderPending),
		snap(core.OrderCompleted),
	}}
	clock := clockwork.NewFakeClock()
	w := NewWatcher(reader, "order-1", time.Second, WithWatcherClock(clock))
	assert.Nil(t, w.Last())

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		last := w.Last()
		return last != nil && last.Status == core.OrderPending
	}, time.Second, time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		last := w.Last()
		return last != nil && last.Status == core.OrderCompleted
	}, time.Second, time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after terminal status")
	}
}

func TestWatcherWithoutReader(t *testing.T) {
	w := NewWatcher(nil, "order-1", 0)
	assert.ErrorIs(t, w.Run(context.Background()), tuneserrors.ErrBackendUnavailable)
}

func TestDiffStatus(t *testing.T) {
	_, ok := diffStatus("o", nil, nil)
	assert.False(t, ok)

	_, ok = diffStatus("o", snap(core.OrderPending), snap(core.OrderPending))
	assert.False(t, ok)

	ev, ok := diffStatus("o", snap(core.OrderPending), snap(core.OrderCancelled))
	assert.True(t, ok)
	assert.Equal(t, core.OrderPending, ev.Previous)
	assert.Equal(t, "o", ev.OrderID)
}

func TestOrchestratorWatcherUpdatesHistory(t *testing.T) {
	reader := &scriptedReader{snaps: []*core.OrderSnapshot{snap(core.OrderCompleted)}}
	history := &recordingHistory{}
	o := New(new(MockBackend), WithStatusReader(reader), WithHistory(history))

	require.NoError(t, o.Watcher("order-1").Run(context.Background()))
	assert.Equal(t, []string{"order-1=completed"}, history.updates)
}
