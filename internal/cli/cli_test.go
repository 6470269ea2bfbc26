package cli

import (
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/tunes/internal/config"
	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/payment"
	"github.com/tessro/tunes/internal/playback"
)

func init() {
	color.NoColor = true
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90", 90 * time.Second, false},
		{"1:30", 90 * time.Second, false},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"1m5s", 65 * time.Second, false},
		{" 0 ", 0, false},
		{"", 0, true},
		{"-5s", 0, true},
		{"-1", 0, true},
		{"a:b", 0, true},
		{"1:2:3:4", 0, true},
		{":30", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{1600 * time.Millisecond, "0:02"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-5 * time.Second, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	assert.Equal(t, "──────────", FormatProgress(time.Second, 0, 10))
	assert.Equal(t, "━━━━━─────", FormatProgress(30*time.Second, time.Minute, 10))
	assert.Equal(t, "━━━━━━━━━━", FormatProgress(2*time.Minute, time.Minute, 10))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "a long ...", TruncateString("a long order id", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
}

func TestTrackFromSource(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"file", "/music/Scales in C.mp3", "Scales in C"},
		{"url", "https://example.com/a/lesson%203.wav?x=1", "lesson 3"},
		{"windows path", `C:\music\warmup.wav`, "warmup"},
		{"bare host", "https://example.com/", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track := trackFromSource(tt.src, "", "", "")
			assert.Equal(t, tt.want, track.Name)
			assert.Equal(t, tt.src, track.ID)
			assert.Equal(t, tt.src, track.Source)
		})
	}

	track := trackFromSource("/music/a.mp3", "Etude", "Chopin", "Op. 10")
	assert.Equal(t, "Chopin - Etude", track.DisplayName())
	assert.Equal(t, "Op. 10", track.Album)
}

func TestVolumeTarget(t *testing.T) {
	got, ok, err := volumeTarget(nil, 0.95, true, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.0, got)

	got, ok, err = volumeTarget(nil, 0.05, false, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, got)

	got, ok, err = volumeTarget(nil, 0.5, true, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.6, got, 1e-9)

	got, ok, err = volumeTarget(nil, 0.4, false, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0.4, got)

	got, ok, err = volumeTarget([]string{"50"}, 0.9, false, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.5, got)

	for _, bad := range []string{"150", "-1", "loud"} {
		_, _, err := volumeTarget([]string{bad}, 0.5, false, false)
		assert.ErrorIs(t, err, tuneserrors.ErrValidation, bad)
	}
}

func TestSetConfigValue(t *testing.T) {
	raw := map[string]any{}

	require.NoError(t, setConfigValue(raw, "player.volume", "60"))
	require.NoError(t, setConfigValue(raw, "idle.events", "keypress, scroll,"))
	require.NoError(t, setConfigValue(raw, "payment.currency", "KES"))

	assert.Equal(t, int64(60), raw["player"].(map[string]any)["volume"])
	assert.Equal(t, []string{"keypress", "scroll"}, raw["idle"].(map[string]any)["events"])
	assert.Equal(t, "KES", raw["payment"].(map[string]any)["currency"])
}

func TestSetConfigValueRejects(t *testing.T) {
	tests := []struct {
		key, value string
		contains   string
	}{
		{"volume", "1", "invalid key format"},
		{"player.volume", "150", "volume must be between 0 and 100"},
		{"player.bogus", "1", "unknown config key"},
		{"payment.default_method", "cash", "invalid default_method"},
		{"tui.refresh_interval", "fast", "must be an integer"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := setConfigValue(map[string]any{}, tt.key, tt.value)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestFormatStatusEvent(t *testing.T) {
	ev := payment.StatusEvent{
		OrderID:  "ord-1",
		Previous: core.OrderPending,
		Current:  &core.OrderSnapshot{ID: "ord-1", Status: core.OrderCompleted},
		At:       time.Date(2026, 3, 1, 14, 3, 5, 0, time.Local),
	}

	assert.Equal(t, "ord-1 completed (was pending)", formatStatusEvent(ev, false, false))
	assert.Equal(t, "✅ ord-1 completed (was pending)", formatStatusEvent(ev, true, false))
	assert.Equal(t, "14:03:05 ✅ ord-1 completed (was pending)", formatStatusEvent(ev, true, true))

	first := payment.StatusEvent{
		OrderID: "ord-2",
		Current: &core.OrderSnapshot{ID: "ord-2", Status: core.OrderPending},
	}
	assert.Equal(t, "⏳ ord-2 pending", formatStatusEvent(first, true, false))
}

func TestStatusIconAndColor(t *testing.T) {
	assert.Equal(t, "▶", StatusIcon(core.StatusPlaying))
	assert.Equal(t, "⏸", StatusIcon(core.StatusPaused))
	assert.Equal(t, "■", StatusIcon(core.StatusStopped))
	assert.Equal(t, "failed", OrderStatusColor("failed"))
}

// memKV is an in-memory playback.KV.
type memKV map[string]string

func (m memKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memKV) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}

func (m memKV) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func TestLoadMemory(t *testing.T) {
	prev := cfg
	cfg = config.Default()
	cfg.Player.MemoryDuration = 300
	t.Cleanup(func() { cfg = prev })

	ctx := context.Background()
	kv := memKV{}

	mem, err := loadMemory(ctx, kv)
	require.NoError(t, err)
	assert.Nil(t, mem)

	saved := playback.Memory{
		Track:    core.Track{ID: "t1", Name: "Scales", Source: "/music/scales.mp3"},
		Position: 42 * time.Second,
		Duration: 3 * time.Minute,
		Volume:   0.7,
		SavedAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, playback.KVMemory{KV: kv}.SaveMemory(ctx, saved))

	mem, err = loadMemory(ctx, kv)
	require.NoError(t, err)
	require.NotNil(t, mem)
	assert.Equal(t, 42*time.Second, mem.Position)

	saved.SavedAt = time.Now().Add(-time.Hour)
	require.NoError(t, playback.KVMemory{KV: kv}.SaveMemory(ctx, saved))
	mem, err = loadMemory(ctx, kv)
	require.NoError(t, err)
	assert.Nil(t, mem, "expired memory is ignored")

	kv[playback.MemoryKey] = "{not json"
	_, err = loadMemory(ctx, kv)
	assert.Error(t, err)
}

func TestMemoryState(t *testing.T) {
	saved := time.Now()
	mem := &playback.Memory{
		Track:    core.Track{ID: "t1", Name: "Scales"},
		Position: 10 * time.Second,
		Duration: time.Minute,
		Volume:   0.3,
		Muted:    true,
		SavedAt:  saved,
	}

	s := memoryState(mem)
	require.True(t, s.HasTrack())
	assert.Equal(t, core.StatusPaused, s.Status)
	assert.Equal(t, 10*time.Second, s.Position)
	assert.Equal(t, time.Minute, s.Duration)
	assert.True(t, s.Muted)
	assert.Equal(t, saved, s.LastPlayedAt)

	s.Track.Name = "changed"
	assert.Equal(t, "Scales", mem.Track.Name)
}

func TestBuildInfo(t *testing.T) {
	info := buildInfo()
	for _, k := range []string{"version", "commit", "build_date", "go_version", "platform"} {
		assert.NotEmpty(t, info[k], k)
	}
	assert.Contains(t, info["platform"], "/")
}
