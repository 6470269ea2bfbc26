package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"
)

// Speaker plays sources on the system audio device.
type Speaker struct {
	sampleRate beep.SampleRate

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	src    *Source
	ctrl   *beep.Ctrl
	volume *effects.Volume
	level  float64
	muted  bool

	logger *zap.Logger
}

// NewSpeaker creates a Speaker that mixes at sampleRate. The device is
// opened lazily on first Play.
func NewSpeaker(sampleRate int, logger *zap.Logger) *Speaker {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speaker{
		sampleRate: beep.SampleRate(sampleRate),
		level:      1,
		logger:     logger,
	}
}

func (s *Speaker) init() error {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(s.sampleRate, s.sampleRate.N(time.Second/10))
		if s.initErr != nil {
			s.logger.Error("audio device init failed", zap.Error(s.initErr))
		}
	})
	return s.initErr
}

// Play implements Output.
func (s *Speaker) Play(src *Source, onEnd func()) error {
	if err := s.init(); err != nil {
		return &MediaError{Code: CodeUnknown, URL: src.URL, Err: fmt.Errorf("audio device: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	speaker.Clear()
	if s.src != nil && s.src != src {
		s.src.Close()
	}

	s.src = src
	s.ctrl = &beep.Ctrl{Streamer: src.Streamer}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2}
	applyVolume(s.volume, s.level, s.muted)

	var stream beep.Streamer = s.volume
	if src.Format.SampleRate != s.sampleRate {
		stream = beep.Resample(4, src.Format.SampleRate, s.sampleRate, stream)
	}

	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		// Runs on the mixer goroutine with the speaker locked.
		if onEnd != nil {
			go onEnd()
		}
	})))

	s.logger.Debug("audio started", zap.String("src", src.URL))
	return nil
}

// SetPaused implements Output.
func (s *Speaker) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctrl == nil {
		return
	}
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

// Seek implements Output.
func (s *Speaker) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return nil
	}

	speaker.Lock()
	defer speaker.Unlock()

	n := s.src.Format.SampleRate.N(position)
	if l := s.src.Streamer.Len(); l > 0 && n >= l {
		n = l - 1
	}
	if n < 0 {
		n = 0
	}
	if err := s.src.Streamer.Seek(n); err != nil {
		return &MediaError{Code: CodeDecode, URL: s.src.URL, Err: err}
	}
	return nil
}

// Position implements Output.
func (s *Speaker) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	return s.src.Format.SampleRate.D(s.src.Streamer.Position())
}

// SetVolume implements Output.
func (s *Speaker) SetVolume(level float64, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
	s.muted = muted
	if s.volume == nil {
		return
	}
	speaker.Lock()
	applyVolume(s.volume, level, muted)
	speaker.Unlock()
}

// Stop implements Output.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return
	}
	speaker.Clear()
	s.src.Close()
	s.src = nil
	s.ctrl = nil
	s.volume = nil
}

// applyVolume maps a linear 0..1 level onto the exponential volume effect.
func applyVolume(v *effects.Volume, level float64, muted bool) {
	if muted || level <= 0 {
		v.Silent = true
		return
	}
	if level > 1 {
		level = 1
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}
