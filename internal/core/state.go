package core

import "time"

// PlaybackStatus is the state of the playback controller.
type PlaybackStatus int

const (
	StatusStopped PlaybackStatus = iota
	StatusLoading
	StatusPlaying
	StatusPaused
)

// String returns the status name.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsActive returns true if a source is loaded or being loaded.
func (s PlaybackStatus) IsActive() bool {
	return s == StatusLoading || s == StatusPlaying || s == StatusPaused
}

// PlaybackState represents the current playback state.
type PlaybackState struct {
	Track        *Track         `json:"track"`
	Status       PlaybackStatus `json:"status"`
	Position     time.Duration  `json:"position"`
	Duration     time.Duration  `json:"duration"`
	Volume       float64        `json:"volume"`
	Muted        bool           `json:"muted"`
	Error        string         `json:"error,omitempty"`
	LastPlayedAt time.Time      `json:"last_played_at"`
}

// HasTrack returns true if there is an active track.
func (s *PlaybackState) HasTrack() bool {
	return s != nil && s.Track != nil
}

// IsPlaying reports whether audio is currently audible.
func (s *PlaybackState) IsPlaying() bool {
	return s != nil && s.Status == StatusPlaying
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *PlaybackState) ProgressPercent() float64 {
	if s == nil || s.Track == nil || s.Duration == 0 {
		return 0
	}
	return float64(s.Position) / float64(s.Duration) * 100
}
