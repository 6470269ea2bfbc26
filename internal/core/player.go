package core

import (
	"context"
	"time"
)

// Player defines the playback control surface consumed by the UI layers.
type Player interface {
	PlayTrack(ctx context.Context, track Track, startAt time.Duration)
	Pause()
	Resume()
	Stop()
	Seek(position time.Duration)
	SetVolume(level float64)
	ToggleMute()
	Clear()
	ClearError()

	State() PlaybackState
}
