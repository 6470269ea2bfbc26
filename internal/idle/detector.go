// Package idle tracks user inactivity and reports when the user is likely
// no longer engaged.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultThreshold         = 60 * time.Second
	DefaultDetectionInterval = time.Second
	DefaultMaxActivations    = 5
)

// DefaultEvents are the input events that count as activity.
var DefaultEvents = []string{"mousedown", "mousemove", "keypress", "scroll", "touchstart"}

// Phase is the detector state.
type Phase int

const (
	PhaseActive Phase = iota
	PhaseIdle
)

// String returns the phase name.
func (p Phase) String() string {
	if p == PhaseIdle {
		return "idle"
	}
	return "active"
}

// Config configures a Detector. Zero values take the defaults.
type Config struct {
	Threshold         time.Duration
	DetectionInterval time.Duration
	Events            []string
	MaxActivations    int

	OnIdleStart func(State)
	OnIdleEnd   func(State)
}

func (c *Config) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.DetectionInterval <= 0 {
		c.DetectionInterval = DefaultDetectionInterval
	}
	if len(c.Events) == 0 {
		c.Events = DefaultEvents
	}
	if c.MaxActivations <= 0 {
		c.MaxActivations = DefaultMaxActivations
	}
}

// State is a snapshot of the detector.
type State struct {
	Phase           Phase
	IdleSince       time.Time
	LastActivity    time.Time
	ActivationCount int
	Threshold       time.Duration
	MediaPlaying    bool
	Online          bool
}

// Idle reports whether the user is currently idle.
func (s State) Idle() bool {
	return s.Phase == PhaseIdle
}

// Tick is published every detection interval while idle.
type Tick struct {
	State   State
	IdleFor time.Duration
}

// Detector is the idle state machine. It starts Active; it goes Idle when
// the threshold elapses with no activity and no media playing.
type Detector struct {
	cfg    Config
	events map[string]struct{}
	clock  clockwork.Clock
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	running    bool
	timer      clockwork.Timer
	timerGen   uint64
	stopTicker chan struct{}

	subsMu sync.Mutex
	subs   map[chan Tick]struct{}
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock sets the clock used for timers.
func WithClock(clock clockwork.Clock) Option {
	return func(d *Detector) {
		d.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Detector. Call Start to begin counting.
func New(cfg Config, opts ...Option) *Detector {
	cfg.applyDefaults()
	d := &Detector{
		cfg:    cfg,
		events: make(map[string]struct{}, len(cfg.Events)),
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
		subs:   make(map[chan Tick]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, e := range cfg.Events {
		d.events[e] = struct{}{}
	}
	d.state = State{
		Phase:        PhaseActive,
		LastActivity: d.clock.Now(),
		Threshold:    cfg.Threshold,
		Online:       true,
	}
	return d
}

// Start begins the countdown.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.state.LastActivity = d.clock.Now()
	d.armLocked()
}

// Stop tears down all timers. Subscriptions stay open.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	d.disarmLocked()
	d.stopTickerLocked()
}

// Notify records an input event. Only configured event names count as
// activity; it reports whether the event was counted.
func (d *Detector) Notify(event string) bool {
	if _, ok := d.events[event]; !ok {
		return false
	}
	d.ResetIdleTimer()
	return true
}

// ResetIdleTimer marks activity. An idle detector becomes active and fires
// OnIdleEnd. The countdown restarts unless media is playing.
func (d *Detector) ResetIdleTimer() {
	d.mu.Lock()
	d.state.LastActivity = d.clock.Now()
	ended := d.endIdleLocked()
	if d.running && !d.state.MediaPlaying {
		d.armLocked()
	}
	snap := d.state
	d.mu.Unlock()

	if ended {
		d.logger.Debug("idle ended", zap.Int("activations", snap.ActivationCount))
		if d.cfg.OnIdleEnd != nil {
			d.cfg.OnIdleEnd(snap)
		}
	}
}

// SetMediaPlaying gates the countdown. While media plays the detector
// never goes idle; playback also counts as engagement and ends an idle
// period. When playback stops the countdown restarts from zero.
func (d *Detector) SetMediaPlaying(playing bool) {
	d.mu.Lock()
	if d.state.MediaPlaying == playing {
		d.mu.Unlock()
		return
	}
	d.state.MediaPlaying = playing

	var ended bool
	if playing {
		d.disarmLocked()
		ended = d.endIdleLocked()
	} else if d.running {
		d.state.LastActivity = d.clock.Now()
		d.armLocked()
	}
	snap := d.state
	d.mu.Unlock()

	if ended && d.cfg.OnIdleEnd != nil {
		d.cfg.OnIdleEnd(snap)
	}
}

// SetOnline records network availability.
func (d *Detector) SetOnline(online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Online = online
}

// WatchOnline runs check every interval, starting immediately, and records
// the result with SetOnline. It returns when ctx is done.
func (d *Detector) WatchOnline(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := check(ctx)
		if ctx.Err() != nil {
			return
		}
		online := err == nil
		d.mu.Lock()
		changed := d.state.Online != online
		d.mu.Unlock()
		if changed {
			d.logger.Debug("connectivity changed", zap.Bool("online", online), zap.Error(err))
		}
		d.SetOnline(online)

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

// ResetActivationCount drops the backoff and returns to the base threshold.
func (d *Detector) ResetActivationCount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.ActivationCount = 0
	if d.state.Threshold != d.cfg.Threshold {
		d.state.Threshold = d.cfg.Threshold
		if d.running && !d.state.MediaPlaying && d.state.Phase == PhaseActive {
			d.armLocked()
		}
	}
}

// Navigate records a route change. A new route is fresh engagement, so
// the backoff is dropped.
func (d *Detector) Navigate(route string) {
	d.logger.Debug("route changed", zap.String("route", route))
	d.ResetActivationCount()
}

// IdleFor returns how long the user has been idle, or 0 when active.
func (d *Detector) IdleFor() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idleForLocked()
}

// State returns a snapshot.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Subscribe returns a channel of idle ticks and a function that ends the
// subscription. Ticks are dropped when the channel is full.
func (d *Detector) Subscribe() (<-chan Tick, func()) {
	ch := make(chan Tick, 8)
	d.subsMu.Lock()
	d.subs[ch] = struct{}{}
	d.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subsMu.Lock()
			delete(d.subs, ch)
			d.subsMu.Unlock()
			close(ch)
		})
	}
}

func (d *Detector) idleForLocked() time.Duration {
	if d.state.Phase != PhaseIdle {
		return 0
	}
	return d.clock.Since(d.state.IdleSince)
}

func (d *Detector) armLocked() {
	d.disarmLocked()
	gen := d.timerGen
	d.timer = d.clock.AfterFunc(d.state.Threshold, func() { d.fire(gen) })
}

func (d *Detector) disarmLocked() {
	d.timerGen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) endIdleLocked() bool {
	if d.state.Phase != PhaseIdle {
		return false
	}
	d.state.Phase = PhaseActive
	d.state.IdleSince = time.Time{}
	d.stopTickerLocked()
	return true
}

func (d *Detector) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.timerGen || !d.running || d.state.MediaPlaying || d.state.Phase == PhaseIdle {
		d.mu.Unlock()
		return
	}
	d.timer = nil

	prior := d.state.ActivationCount
	d.state.ActivationCount++
	if prior >= d.cfg.MaxActivations {
		next := d.cfg.Threshold * time.Duration(prior/d.cfg.MaxActivations+1)
		if next > d.state.Threshold {
			d.state.Threshold = next
		}
	}
	d.state.Phase = PhaseIdle
	d.state.IdleSince = d.clock.Now()
	d.startTickerLocked()
	snap := d.state
	d.mu.Unlock()

	d.logger.Debug("idle started",
		zap.Int("activations", snap.ActivationCount),
		zap.Duration("next_threshold", snap.Threshold),
	)
	if d.cfg.OnIdleStart != nil {
		d.cfg.OnIdleStart(snap)
	}
}

func (d *Detector) startTickerLocked() {
	d.stopTickerLocked()
	stop := make(chan struct{})
	d.stopTicker = stop
	ticker := d.clock.NewTicker(d.cfg.DetectionInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				d.mu.Lock()
				if d.state.Phase != PhaseIdle {
					d.mu.Unlock()
					continue
				}
				tick := Tick{State: d.state, IdleFor: d.idleForLocked()}
				d.mu.Unlock()
				d.publish(tick)
			}
		}
	}()
}

func (d *Detector) stopTickerLocked() {
	if d.stopTicker != nil {
		close(d.stopTicker)
		d.stopTicker = nil
	}
}

func (d *Detector) publish(t Tick) {
	d.subsMu.Lock()
	defer d.subsMu.Unlock()
	for ch := range d.subs {
		select {
		case ch <- t:
		default:
		}
	}
}
