// Package audio loads media sources and drives the single process-wide
// audio output.
package audio

import (
	"bytes"
	"time"

	"github.com/faiface/beep"
)

// Source is a decoded, seekable media stream.
type Source struct {
	URL      string
	Streamer beep.StreamSeekCloser
	Format   beep.Format
}

// Duration returns the total length of the source, or 0 when the decoder
// cannot tell.
func (s *Source) Duration() time.Duration {
	if s == nil || s.Streamer == nil {
		return 0
	}
	n := s.Streamer.Len()
	if n <= 0 {
		return 0
	}
	return s.Format.SampleRate.D(n)
}

// Close releases the decoder.
func (s *Source) Close() error {
	if s == nil || s.Streamer == nil {
		return nil
	}
	return s.Streamer.Close()
}

// memFile lets decoders seek within a fully buffered body.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }
