package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/tessro/tunes/internal/core"
)

var (
	// ErrNotRunning means no player process is listening.
	ErrNotRunning = errors.New("no player running")
	// ErrAlreadyRunning means another process owns the socket.
	ErrAlreadyRunning = errors.New("a player is already running")
)

// Client sends commands to a running player.
type Client struct {
	http    *http.Client
	baseURL string
}

// Dial returns a client for the socket at path. Nothing is sent until the
// first command.
func Dial(path string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: 5 * time.Second},
		baseURL: "http://tunes",
	}
}

// NewClient returns a client for a server at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{http: hc, baseURL: baseURL}
}

// State returns the running player's state.
func (c *Client) State(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodGet, "/state", nil, nil)
}

// Play loads track on the running player.
func (c *Client) Play(ctx context.Context, track core.Track, startAt time.Duration) (core.PlaybackState, error) {
	body, err := json.Marshal(PlayRequest{Track: track, StartAt: startAt})
	if err != nil {
		return core.PlaybackState{}, err
	}
	return c.do(ctx, http.MethodPost, "/play", nil, body)
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/pause", nil, nil)
}

// Resume resumes playback.
func (c *Client) Resume(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/resume", nil, nil)
}

// Stop stops playback and rewinds.
func (c *Client) Stop(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/stop", nil, nil)
}

// Clear unloads the track and forgets the session.
func (c *Client) Clear(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/clear", nil, nil)
}

// ToggleMute flips mute.
func (c *Client) ToggleMute(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/mute", nil, nil)
}

// ClearError dismisses the current error.
func (c *Client) ClearError(ctx context.Context) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/clear-error", nil, nil)
}

// Seek moves to position.
func (c *Client) Seek(ctx context.Context, position time.Duration) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/seek", url.Values{"position": {position.String()}}, nil)
}

// SetVolume sets the volume in [0, 1].
func (c *Client) SetVolume(ctx context.Context, level float64) (core.PlaybackState, error) {
	return c.do(ctx, http.MethodPost, "/volume", url.Values{"level": {strconv.FormatFloat(level, 'f', -1, 64)}}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (core.PlaybackState, error) {
	var state core.PlaybackState

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return state, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isNotRunning(err) {
			return state, ErrNotRunning
		}
		return state, fmt.Errorf("control request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return state, fmt.Errorf("player rejected command: %s", e.Error)
		}
		return state, fmt.Errorf("player rejected command: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return state, fmt.Errorf("failed to decode player state: %w", err)
	}
	return state, nil
}

func isNotRunning(err error) bool {
	return errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
