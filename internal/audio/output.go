package audio

import "time"

// Output is the single audio sink. Playing a new source replaces whatever
// was playing before.
type Output interface {
	// Play starts src from its current position. onEnd is called once,
	// from its own goroutine, when the stream runs out.
	Play(src *Source, onEnd func()) error
	SetPaused(paused bool)
	Seek(position time.Duration) error
	Position() time.Duration
	SetVolume(level float64, muted bool)
	// Stop halts output and releases the current source.
	Stop()
}
