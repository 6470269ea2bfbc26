// Package notify delivers non-fatal, user-facing notifications.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a message meant for the user.
type Notification struct {
	Title   string
	Message string
	Level   Level
	At      time.Time
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to a Notifier.
type Func func(Notification)

// Notify implements Notifier.
func (f Func) Notify(n Notification) { f(n) }

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(Notification) {}

// Log writes notifications to a zap logger.
type Log struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (l Log) Notify(n Notification) {
	if l.Logger == nil {
		return
	}
	fields := []zap.Field{zap.String("title", n.Title), zap.String("level", n.Level.String())}
	switch n.Level {
	case LevelError:
		l.Logger.Error(n.Message, fields...)
	case LevelWarning:
		l.Logger.Warn(n.Message, fields...)
	default:
		l.Logger.Info(n.Message, fields...)
	}
}

// Terminal prints colored notifications.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a Terminal notifier writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Notify implements Notifier.
func (t *Terminal) Notify(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var c *color.Color
	switch n.Level {
	case LevelSuccess:
		c = color.New(color.FgGreen, color.Bold)
	case LevelWarning:
		c = color.New(color.FgYellow, color.Bold)
	case LevelError:
		c = color.New(color.FgRed, color.Bold)
	default:
		c = color.New(color.FgCyan, color.Bold)
	}

	if n.Title != "" {
		c.Fprintf(t.w, "%s: ", n.Title)
	}
	fmt.Fprintln(t.w, n.Message)
}

// Channel buffers notifications for a consumer such as the TUI. When the
// buffer is full new notifications are dropped.
type Channel struct {
	ch chan Notification
}

// NewChannel creates a Channel notifier with the given buffer size.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 16
	}
	return &Channel{ch: make(chan Notification, size)}
}

// Notify implements Notifier.
func (c *Channel) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	select {
	case c.ch <- n:
	default:
	}
}

// C returns the receive side.
func (c *Channel) C() <-chan Notification {
	return c.ch
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Recorder keeps every notification. Useful in tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
