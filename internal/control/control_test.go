package control

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/tunes/internal/core"
)

type fakePlayer struct {
	mu    sync.Mutex
	state core.PlaybackState
	calls []string
}

func (p *fakePlayer) record(name string, fn func(*core.PlaybackState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
	if fn != nil {
		fn(&p.state)
	}
}

func (p *fakePlayer) PlayTrack(_ context.Context, track core.Track, startAt time.Duration) {
	p.record("play", func(s *core.PlaybackState) {
		s.Track = &track
		s.Position = startAt
		s.Status = core.StatusLoading
	})
}
func (p *fakePlayer) Pause() {
	p.record("pause", func(s *core.PlaybackState) { s.Status = core.StatusPaused })
}
func (p *fakePlayer) Resume() {
	p.record("resume", func(s *core.PlaybackState) { s.Status = core.StatusPlaying })
}
func (p *fakePlayer) Stop() {
	p.record("stop", func(s *core.PlaybackState) { s.Status, s.Position = core.StatusStopped, 0 })
}
func (p *fakePlayer) Seek(d time.Duration) {
	p.record("seek", func(s *core.PlaybackState) { s.Position = d })
}
func (p *fakePlayer) SetVolume(v float64) {
	p.record("volume", func(s *core.PlaybackState) { s.Volume = v })
}
func (p *fakePlayer) ToggleMute() {
	p.record("mute", func(s *core.PlaybackState) { s.Muted = !s.Muted })
}
func (p *fakePlayer) Clear() {
	p.record("clear", func(s *core.PlaybackState) { *s = core.PlaybackState{Volume: 0.8} })
}
func (p *fakePlayer) ClearError() {
	p.record("clearError", func(s *core.PlaybackState) { s.Error = "" })
}
func (p *fakePlayer) State() core.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func newTestClient(t *testing.T) (*Client, *fakePlayer) {
	t.Helper()
	p := &fakePlayer{}
	srv := httptest.NewServer(NewServer(context.Background(), p, nil).Router())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client()), p
}

func TestClientCommands(t *testing.T) {
	c, p := newTestClient(t)
	ctx := context.Background()

	state, err := c.Play(ctx, core.Track{Name: "Song", Source: "https://example.com/a.mp3"}, 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, state.Track)
	assert.Equal(t, "https://example.com/a.mp3", state.Track.ID, "id defaults to source")
	assert.Equal(t, 30*time.Second, state.Position)

	state, err = c.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPlaying, state.Status)

	state, err = c.Seek(ctx, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, state.Position)

	state, err = c.SetVolume(ctx, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, state.Volume, 1e-9)

	state, err = c.ToggleMute(ctx)
	require.NoError(t, err)
	assert.True(t, state.Muted)

	state, err = c.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaused, state.Status)

	state, err = c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusStopped, state.Status)
	assert.Zero(t, state.Position)

	_, err = c.ClearError(ctx)
	require.NoError(t, err)

	state, err = c.Clear(ctx)
	require.NoError(t, err)
	assert.Nil(t, state.Track)

	assert.Equal(t, []string{"play", "resume", "seek", "volume", "mute", "pause", "stop", "clearError", "clear"}, p.calls)
}

func TestClientState(t *testing.T) {
	c, p := newTestClient(t)
	p.state = core.PlaybackState{Status: core.StatusPaused, Volume: 0.5}

	state, err := c.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaused, state.Status)
	assert.Empty(t, p.calls, "state must not issue commands")
}

func TestPlayRequiresSource(t *testing.T) {
	c, p := newTestClient(t)

	_, err := c.Play(context.Background(), core.Track{Name: "No source"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "track source is required")
	assert.Empty(t, p.calls)
}

func TestSocketRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "tunes")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := SocketPath(dir)

	p := &fakePlayer{}
	srv := NewServer(context.Background(), p, nil)
	require.NoError(t, srv.Listen(path))
	srv.Start()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	state, err := Dial(path).Pause(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaused, state.Status)

	second := NewServer(context.Background(), p, nil)
	assert.ErrorIs(t, second.Listen(path), ErrAlreadyRunning)
}

func TestStaleSocketReplaced(t *testing.T) {
	dir, err := os.MkdirTemp("", "tunes")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, SocketName)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	srv := NewServer(context.Background(), &fakePlayer{}, nil)
	require.NoError(t, srv.Listen(path))
	require.NoError(t, srv.Shutdown(context.Background()))

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "socket should be removed on shutdown")
}

func TestDialNotRunning(t *testing.T) {
	dir := t.TempDir()
	_, err := Dial(filepath.Join(dir, SocketName)).State(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}
