package idle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

func newTestDetector(t *testing.T, cfg Config) (*Detector, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	d := New(cfg, WithClock(clock))
	d.Start()
	t.Cleanup(d.Stop)
	return d, clock
}

func waitIdle(t *testing.T, d *Detector) {
	t.Helper()
	require.Eventually(t, func() bool { return d.State().Idle() }, waitFor, time.Millisecond)
}

// stayActive asserts the detector does not go idle within a short window.
func stayActive(t *testing.T, d *Detector) {
	t.Helper()
	require.Never(t, func() bool { return d.State().Idle() }, 30*time.Millisecond, time.Millisecond)
}

func TestIdleAfterThreshold(t *testing.T) {
	var starts atomic.Int32
	d, clock := newTestDetector(t, Config{
		Threshold:   60 * time.Second,
		OnIdleStart: func(State) { starts.Add(1) },
	})
	begin := clock.Now()

	clock.Advance(59 * time.Second)
	stayActive(t, d)

	clock.Advance(time.Second)
	waitIdle(t, d)

	state := d.State()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Equal(t, begin.Add(60*time.Second), state.IdleSince)
	assert.Equal(t, 1, state.ActivationCount)
	assert.Equal(t, int32(1), starts.Load())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 30*time.Second, d.IdleFor())
}

func TestMediaPlayingSuspendsIdle(t *testing.T) {
	d, clock := newTestDetector(t, Config{Threshold: time.Minute})

	d.SetMediaPlaying(true)
	clock.Advance(time.Hour)
	stayActive(t, d)
	assert.Equal(t, 0, d.State().ActivationCount)

	// Activity while media plays must not restart the countdown.
	d.ResetIdleTimer()
	clock.Advance(time.Hour)
	stayActive(t, d)

	d.SetMediaPlaying(false)
	clock.Advance(59 * time.Second)
	stayActive(t, d)
	clock.Advance(time.Second)
	waitIdle(t, d)
}

func TestMediaPlayingEndsIdle(t *testing.T) {
	var ends atomic.Int32
	d, clock := newTestDetector(t, Config{
		Threshold: time.Minute,
		OnIdleEnd: func(State) { ends.Add(1) },
	})

	clock.Advance(time.Minute)
	waitIdle(t, d)

	d.SetMediaPlaying(true)
	assert.False(t, d.State().Idle())
	assert.Equal(t, int32(1), ends.Load())
	assert.Equal(t, time.Duration(0), d.IdleFor())
}

func TestActivityEndsIdle(t *testing.T) {
	var ends atomic.Int32
	d, clock := newTestDetector(t, Config{
		Threshold: time.Minute,
		OnIdleEnd: func(State) { ends.Add(1) },
	})

	assert.False(t, d.Notify("resize"), "unconfigured events are ignored")
	assert.True(t, d.Notify("keypress"))

	clock.Advance(time.Minute)
	waitIdle(t, d)

	d.Notify("mousemove")
	state := d.State()
	assert.False(t, state.Idle())
	assert.True(t, state.IdleSince.IsZero())
	assert.Equal(t, int32(1), ends.Load())

	// The countdown restarts from the activity.
	clock.Advance(59 * time.Second)
	stayActive(t, d)
	clock.Advance(time.Second)
	waitIdle(t, d)
	assert.Equal(t, 2, d.State().ActivationCount)
}

func TestBackoffAfterMaxActivations(t *testing.T) {
	base := time.Minute
	d, clock := newTestDetector(t, Config{Threshold: base, MaxActivations: 5})

	for i := 1; i <= 5; i++ {
		clock.Advance(base)
		waitIdle(t, d)
		assert.Equal(t, i, d.State().ActivationCount)
		assert.Equal(t, base, d.State().Threshold, "no backoff before the count exceeds the max")
		d.ResetIdleTimer()
	}

	clock.Advance(base)
	waitIdle(t, d)
	state := d.State()
	assert.Equal(t, 6, state.ActivationCount)
	assert.Equal(t, 2*base, state.Threshold)
	assert.Greater(t, state.Threshold, base)

	d.ResetIdleTimer()
	clock.Advance(base)
	stayActive(t, d)
	clock.Advance(base)
	waitIdle(t, d)
	assert.Equal(t, 2*base, d.State().Threshold, "threshold never shrinks")

	d.ResetActivationCount()
	state = d.State()
	assert.Equal(t, 0, state.ActivationCount)
	assert.Equal(t, base, state.Threshold)
}

func TestNavigateResetsBackoff(t *testing.T) {
	d, clock := newTestDetector(t, Config{Threshold: time.Second, MaxActivations: 1})

	for i := 0; i < 2; i++ {
		clock.Advance(d.State().Threshold)
		waitIdle(t, d)
		d.ResetIdleTimer()
	}
	require.Equal(t, 2*time.Second, d.State().Threshold)

	d.Navigate("/discover")
	assert.Equal(t, time.Second, d.State().Threshold)
	assert.Equal(t, 0, d.State().ActivationCount)
}

func TestTicksWhileIdle(t *testing.T) {
	d, clock := newTestDetector(t, Config{Threshold: time.Minute, DetectionInterval: time.Second})
	ticks, cancel := d.Subscribe()
	defer cancel()

	clock.Advance(time.Minute)
	waitIdle(t, d)

	clock.Advance(time.Second)
	select {
	case tick := <-ticks:
		assert.Equal(t, time.Second, tick.IdleFor)
		assert.True(t, tick.State.Idle())
	case <-time.After(waitFor):
		t.Fatal("no tick while idle")
	}
}

func TestStopPreventsIdle(t *testing.T) {
	d, clock := newTestDetector(t, Config{Threshold: time.Minute})
	d.Stop()

	clock.Advance(time.Hour)
	stayActive(t, d)
}

func TestDefaults(t *testing.T) {
	d := New(Config{})
	state := d.State()
	assert.Equal(t, PhaseActive, state.Phase)
	assert.Equal(t, DefaultThreshold, state.Threshold)
	assert.True(t, state.Online)
	assert.True(t, d.Notify("touchstart"))
	assert.False(t, d.Notify("keydown"))

	d.SetOnline(false)
	assert.False(t, d.State().Online)
}

func TestWatchOnline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := New(Config{}, WithClock(clock))

	var down atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.WatchOnline(ctx, time.Minute, func(context.Context) error {
			if down.Load() {
				return errors.New("unreachable")
			}
			return nil
		})
	}()

	down.Store(true)
	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return !d.State().Online }, waitFor, time.Millisecond)

	down.Store(false)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return d.State().Online }, waitFor, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("WatchOnline did not return after cancel")
	}
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		name    string
		idleFor time.Duration
		route   string
		online  bool
		want    Mode
	}{
		{"fresh online", 30 * time.Second, "/", true, ModeFact},
		{"fresh offline", 30 * time.Second, "/", false, ModeBackground},
		{"mid on showcase route", 3 * time.Minute, "/discover", true, ModeShowcase},
		{"mid elsewhere", 3 * time.Minute, "/profile", true, ModeFact},
		{"long", 6 * time.Minute, "/library", true, ModeGame},
		{"boundary two minutes", 2 * time.Minute, "/library", true, ModeShowcase},
		{"boundary five minutes", 5 * time.Minute, "/", false, ModeGame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModeFor(tt.idleFor, tt.route, tt.online))
		})
	}
}
