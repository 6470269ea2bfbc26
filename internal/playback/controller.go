// Package playback owns the single global audio player: what is loaded,
// whether it is playing, and where it is.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/audio"
	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/notify"
)

const (
	DefaultVolume           = 0.8
	DefaultMemoryDuration   = 5 * time.Minute
	DefaultProgressInterval = 250 * time.Millisecond
)

// Loader fetches and decodes a media source.
type Loader interface {
	Load(ctx context.Context, src string) (*audio.Source, error)
}

// Controller implements core.Player on top of an audio.Output.
type Controller struct {
	out    audio.Output
	loader Loader

	clock            clockwork.Clock
	logger           *zap.Logger
	notifier         notify.Notifier
	memory           MemoryStore
	memoryDuration   time.Duration
	progressInterval time.Duration
	defaultVolume    float64

	mu           sync.Mutex
	state        core.PlaybackState
	src          *audio.Source
	ended        bool
	gen          uint64
	cancelLoad   context.CancelFunc
	stopProgress chan struct{}
	memTimer     clockwork.Timer
	closed       bool

	// Events and memory writes are issued under mu so they follow state order.
	events  broadcaster
	persist *persister
}

var _ core.Player = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for timers.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNotifier sets where user-facing errors are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithMemory enables persisting and restoring the last track.
func WithMemory(store MemoryStore) Option {
	return func(c *Controller) {
		c.memory = store
	}
}

// WithMemoryDuration sets how long a paused player, or a saved snapshot,
// survives before it is cleared.
func WithMemoryDuration(d time.Duration) Option {
	return func(c *Controller) {
		c.memoryDuration = d
	}
}

// WithProgressInterval sets how often the position is refreshed while playing.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.progressInterval = d
	}
}

// WithVolume sets the initial volume.
func WithVolume(level float64) Option {
	return func(c *Controller) {
		c.defaultVolume = clampVolume(level)
	}
}

// New creates a Controller and restores the saved snapshot, if any. A
// restored track is never auto-played.
func New(out audio.Output, loader Loader, opts ...Option) *Controller {
	c := &Controller{
		out:              out,
		loader:           loader,
		clock:            clockwork.NewRealClock(),
		logger:           zap.NewNop(),
		notifier:         notify.Nop{},
		memoryDuration:   DefaultMemoryDuration,
		progressInterval: DefaultProgressInterval,
		defaultVolume:    DefaultVolume,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Volume = c.defaultVolume

	c.mu.Lock()
	c.restoreLocked()
	c.mu.Unlock()

	if c.memory != nil {
		c.persist = newPersister(c.memory, c.logger)
	}
	return c
}

func (c *Controller) restoreLocked() {
	if c.memory == nil {
		return
	}
	ctx := context.Background()

	mem, err := c.memory.LoadMemory(ctx)
	if err != nil {
		c.logger.Warn("discarding unreadable player memory", zap.Error(err))
		_ = c.memory.DeleteMemory(ctx)
		return
	}
	if mem == nil {
		return
	}
	if c.memoryDuration > 0 && c.clock.Since(mem.SavedAt) > c.memoryDuration {
		c.logger.Debug("player memory expired", zap.Time("saved_at", mem.SavedAt))
		_ = c.memory.DeleteMemory(ctx)
		return
	}

	track := mem.Track
	c.state = core.PlaybackState{
		Track:        &track,
		Status:       core.StatusPaused,
		Position:     mem.Position,
		Duration:     mem.Duration,
		Volume:       clampVolume(mem.Volume),
		Muted:        mem.Muted,
		LastPlayedAt: mem.SavedAt,
	}
	c.armMemoryTimerLocked()
	c.logger.Debug("restored player memory", zap.String("track", track.ID), zap.Duration("position", mem.Position))
}

// Subscribe returns a subscription to controller events.
func (c *Controller) Subscribe() *Subscription {
	return c.events.subscribe(32)
}

// State returns a snapshot of the current playback state.
func (c *Controller) State() core.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snapshotLocked()
	if s.Status == core.StatusPlaying && c.src != nil {
		s.Position = c.clampLocked(c.out.Position())
	}
	return s
}

// PlayTrack replaces whatever is playing with track, starting at startAt.
// Replaying the loaded track resumes it in place, at startAt or at the last
// known position when startAt is zero.
func (c *Controller) PlayTrack(ctx context.Context, track core.Track, startAt time.Duration) {
	if startAt < 0 {
		startAt = 0
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if c.sameTrackLoadedLocked(track) {
		pos := startAt
		if pos == 0 {
			pos = c.state.Position
		}
		pos = c.clampLocked(pos)
		if c.ended {
			c.replayLocked()
		}
		if err := c.out.Seek(pos); err != nil {
			c.logger.Warn("seek failed on replay", zap.Error(err))
		}
		c.out.SetPaused(false)
		c.state.Status = core.StatusPlaying
		c.state.Position = pos
		c.state.LastPlayedAt = c.clock.Now()
		c.startProgressLocked()
		c.stopMemoryTimerLocked()
		c.commitLocked(EventStateChange)
		return
	}

	c.beginLoadLocked(ctx, track, startAt)
	c.commitLocked(EventTrackChange)
}

// Pause pauses the current source and captures its position.
func (c *Controller) Pause() {
	c.mu.Lock()
	switch {
	case c.state.Status == core.StatusLoading:
		c.state.Status = core.StatusPaused
	case c.state.Status == core.StatusPlaying && c.src != nil:
		c.state.Position = c.clampLocked(c.out.Position())
		c.out.SetPaused(true)
		c.state.Status = core.StatusPaused
	default:
		c.mu.Unlock()
		return
	}
	c.state.LastPlayedAt = c.clock.Now()
	c.stopProgressLocked()
	c.armMemoryTimerLocked()
	c.commitLocked(EventStateChange)
}

// Resume continues the current track. A track restored from memory is
// loaded first and starts at its saved position.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.closed || c.state.Track == nil || c.state.Error != "" {
		c.mu.Unlock()
		return
	}

	switch {
	case c.src != nil:
		if c.state.Status == core.StatusPlaying {
			c.mu.Unlock()
			return
		}
		if c.ended {
			c.replayLocked()
		} else {
			c.out.SetPaused(false)
		}
		c.state.Status = core.StatusPlaying
		c.state.LastPlayedAt = c.clock.Now()
		c.startProgressLocked()
		c.stopMemoryTimerLocked()
	case c.cancelLoad != nil:
		c.state.Status = core.StatusLoading
		c.stopMemoryTimerLocked()
	default:
		c.beginLoadLocked(context.Background(), *c.state.Track, c.state.Position)
	}
	c.commitLocked(EventStateChange)
}

// Stop pauses and rewinds to the start, keeping the track.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state.Track == nil {
		c.mu.Unlock()
		return
	}
	if c.src != nil {
		c.out.SetPaused(true)
		if err := c.out.Seek(0); err != nil {
			c.logger.Warn("rewind failed", zap.Error(err))
		}
	}
	c.state.Status = core.StatusStopped
	c.state.Position = 0
	c.state.Error = ""
	c.stopProgressLocked()
	c.armMemoryTimerLocked()
	c.commitLocked(EventStateChange)
}

// Seek moves to position, clamped to the track bounds.
func (c *Controller) Seek(position time.Duration) {
	c.mu.Lock()
	if c.state.Track == nil || c.state.Error != "" {
		c.mu.Unlock()
		return
	}

	position = c.clampLocked(position)
	if c.src != nil {
		if err := c.out.Seek(position); err != nil {
			c.state.Error = "Failed to seek in audio track"
			c.mu.Unlock()
			c.reportError(err, "Failed to seek in audio track")
			return
		}
	}
	c.state.Position = position
	c.state.LastPlayedAt = c.clock.Now()
	c.commitLocked(EventStateChange)
}

// SetVolume sets the output level. Zero mutes.
func (c *Controller) SetVolume(level float64) {
	level = clampVolume(level)

	c.mu.Lock()
	c.state.Volume = level
	c.state.Muted = level == 0
	c.out.SetVolume(c.state.Volume, c.state.Muted)
	c.commitLocked(EventStateChange)
}

// ToggleMute flips the mute state, keeping the volume level.
func (c *Controller) ToggleMute() {
	c.mu.Lock()
	c.state.Muted = !c.state.Muted
	c.out.SetVolume(c.state.Volume, c.state.Muted)
	c.commitLocked(EventStateChange)
}

// ClearError dismisses the last playback error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	if c.state.Error == "" {
		c.mu.Unlock()
		return
	}
	c.state.Error = ""
	c.commitLocked(EventStateChange)
}

// Clear stops playback, releases the source, resets the state and forgets
// the saved snapshot. Clearing an empty player does nothing.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.state.Track == nil && c.src == nil && c.cancelLoad == nil {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.events.publish(Event{Type: EventCleared, State: c.snapshotLocked()})
	c.forgetLocked()
	c.mu.Unlock()
}

// Close saves the snapshot, releases the output and ends all
// subscriptions. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state.Status == core.StatusPlaying && c.src != nil {
		c.state.Position = c.clampLocked(c.out.Position())
	}
	c.saveLocked()
	c.closed = true
	c.gen++
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.stopProgressLocked()
	c.stopMemoryTimerLocked()
	if c.src != nil {
		c.out.Stop()
		c.src = nil
	}
	c.mu.Unlock()

	if c.persist != nil {
		c.persist.close()
	}
	c.events.closeAll()
}

func (c *Controller) sameTrackLoadedLocked(track core.Track) bool {
	return c.state.Track != nil &&
		c.state.Track.ID == track.ID &&
		c.src != nil &&
		c.state.Error == ""
}

// beginLoadLocked supersedes any in-flight load and starts a new one.
func (c *Controller) beginLoadLocked(ctx context.Context, track core.Track, startAt time.Duration) {
	c.gen++
	gen := c.gen

	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.stopProgressLocked()
	c.stopMemoryTimerLocked()
	if c.src != nil {
		c.out.Stop()
		c.src = nil
	}
	c.ended = false

	c.state.Track = &track
	c.state.Status = core.StatusLoading
	c.state.Position = startAt
	c.state.Duration = track.Duration
	c.state.Error = ""
	c.state.LastPlayedAt = c.clock.Now()

	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel

	c.logger.Debug("loading track", zap.String("track", track.ID), zap.Uint64("gen", gen))
	go c.load(loadCtx, gen, track)
}

func (c *Controller) load(ctx context.Context, gen uint64, track core.Track) {
	src, err := c.loader.Load(ctx, track.Source)

	c.mu.Lock()
	if gen != c.gen || c.closed || c.state.Track == nil || c.state.Track.ID != track.ID {
		c.mu.Unlock()
		if src != nil {
			src.Close()
		}
		c.logger.Debug("discarding superseded load", zap.String("track", track.ID), zap.Uint64("gen", gen))
		return
	}

	if cancel := c.cancelLoad; cancel != nil {
		c.cancelLoad = nil
		defer cancel()
	}

	if err == nil {
		if d := src.Duration(); d > 0 {
			c.state.Duration = d
		}
		c.out.SetVolume(c.state.Volume, c.state.Muted)
		err = c.out.Play(src, c.endedFunc(gen))
		if err != nil {
			src.Close()
		}
	}
	if err != nil {
		msg := audio.MessageFor(err)
		c.state.Status = core.StatusStopped
		c.state.Error = msg
		c.armMemoryTimerLocked()
		c.mu.Unlock()
		c.reportError(err, msg)
		return
	}

	c.src = src
	pos := c.clampLocked(c.state.Position)
	if pos > 0 {
		if err := c.out.Seek(pos); err != nil {
			c.logger.Warn("initial seek failed", zap.Error(err))
			pos = 0
		}
	}
	c.state.Position = pos
	c.state.LastPlayedAt = c.clock.Now()

	// Paused or stopped while loading.
	if c.state.Status == core.StatusPaused || c.state.Status == core.StatusStopped {
		c.out.SetPaused(true)
		c.armMemoryTimerLocked()
	} else {
		c.state.Status = core.StatusPlaying
		c.startProgressLocked()
	}
	c.commitLocked(EventStateChange)
}

func (c *Controller) endedFunc(gen uint64) func() {
	return func() {
		c.mu.Lock()
		if gen != c.gen || c.src == nil {
			c.mu.Unlock()
			return
		}
		c.ended = true
		c.stopProgressLocked()
		if err := c.out.Seek(0); err != nil {
			c.logger.Debug("rewind after end failed", zap.Error(err))
		}
		c.state.Status = core.StatusStopped
		c.state.Position = 0
		c.armMemoryTimerLocked()
		c.commitLocked(EventStateChange)
	}
}

// replayLocked hands an ended source back to the output.
func (c *Controller) replayLocked() {
	if err := c.out.Play(c.src, c.endedFunc(c.gen)); err != nil {
		c.logger.Warn("replay failed", zap.Error(err))
		return
	}
	c.out.SetVolume(c.state.Volume, c.state.Muted)
	c.ended = false
}

func (c *Controller) resetLocked() {
	c.gen++
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.stopProgressLocked()
	c.stopMemoryTimerLocked()
	if c.src != nil {
		c.out.Stop()
		c.src = nil
	}
	c.ended = false
	c.state = core.PlaybackState{Volume: c.defaultVolume}
	c.out.SetVolume(c.state.Volume, false)
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.state.Track == nil ||
		c.state.Status == core.StatusPlaying || c.state.Status == core.StatusLoading {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.events.publish(Event{Type: EventCleared, State: c.snapshotLocked()})
	c.forgetLocked()
	c.mu.Unlock()

	c.logger.Info("player memory expired, clearing")
}

func (c *Controller) armMemoryTimerLocked() {
	c.stopMemoryTimerLocked()
	if c.state.Track == nil || c.memoryDuration <= 0 {
		return
	}
	gen := c.gen
	c.memTimer = c.clock.AfterFunc(c.memoryDuration, func() { c.expire(gen) })
}

func (c *Controller) stopMemoryTimerLocked() {
	if c.memTimer != nil {
		c.memTimer.Stop()
		c.memTimer = nil
	}
}

func (c *Controller) startProgressLocked() {
	if c.stopProgress != nil || c.progressInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	c.stopProgress = stop
	ticker := c.clock.NewTicker(c.progressInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				c.tick()
			}
		}
	}()
}

func (c *Controller) stopProgressLocked() {
	if c.stopProgress != nil {
		close(c.stopProgress)
		c.stopProgress = nil
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	if c.state.Status != core.StatusPlaying || c.src == nil {
		c.mu.Unlock()
		return
	}
	c.state.Position = c.clampLocked(c.out.Position())
	c.state.LastPlayedAt = c.clock.Now()
	c.events.publish(Event{Type: EventProgress, State: c.snapshotLocked()})
	c.mu.Unlock()
}

// commitLocked publishes the state, queues it for persistence and
// releases the lock.
func (c *Controller) commitLocked(t EventType) {
	c.events.publish(Event{Type: t, State: c.snapshotLocked()})
	c.saveLocked()
	c.mu.Unlock()
}

func (c *Controller) reportError(err error, msg string) {
	c.logger.Warn("playback error", zap.String("message", msg), zap.Error(err))
	c.notifier.Notify(notify.Notification{
		Title:   "Playback Error",
		Message: msg,
		Level:   notify.LevelError,
		At:      c.clock.Now(),
	})

	c.mu.Lock()
	c.events.publish(Event{Type: EventError, State: c.snapshotLocked()})
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() core.PlaybackState {
	s := c.state
	if s.Track != nil {
		t := *s.Track
		s.Track = &t
	}
	return s
}

func (c *Controller) saveLocked() {
	if c.persist == nil || c.state.Track == nil {
		return
	}
	c.persist.save(&Memory{
		Track:    *c.state.Track,
		Position: c.state.Position,
		Duration: c.state.Duration,
		Volume:   c.state.Volume,
		Muted:    c.state.Muted,
		SavedAt:  c.clock.Now(),
	})
}

func (c *Controller) forgetLocked() {
	if c.persist != nil {
		c.persist.forget()
	}
}

func (c *Controller) clampLocked(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if c.state.Duration > 0 && d > c.state.Duration {
		return c.state.Duration
	}
	return d
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
