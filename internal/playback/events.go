package playback

import (
	"sync"

	"github.com/tessro/tunes/internal/core"
)

// EventType identifies what changed.
type EventType int

const (
	EventStateChange EventType = iota
	EventTrackChange
	EventProgress
	EventError
	EventCleared
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventStateChange:
		return "state"
	case EventTrackChange:
		return "track"
	case EventProgress:
		return "progress"
	case EventError:
		return "error"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every state change.
type Event struct {
	Type  EventType
	State core.PlaybackState
}

// Subscription receives controller events until closed.
type Subscription struct {
	ch     chan Event
	once   sync.Once
	cancel func(*Subscription)
}

// C returns the event channel. It is closed when the subscription or the
// controller is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close stops delivery.
func (s *Subscription) Close() {
	s.cancel(s)
}

type broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func (b *broadcaster) subscribe(size int) *Subscription {
	if size <= 0 {
		size = 32
	}
	s := &Subscription{ch: make(chan Event, size)}
	s.cancel = b.remove

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[*Subscription]struct{})
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// publish never blocks; slow subscribers miss events.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}
