package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/tunes/internal/config"
	"github.com/tessro/tunes/internal/control"
	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/playback"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Long:  `Pause the running player. The position is remembered for 'tunes resume'.`,
	Args:  cobra.NoArgs,
	RunE:  runPause,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Long:  `Stop playback and rewind to the start of the track.`,
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Unload the track and forget it",
	Long:  `Unload the current track and delete the remembered session.`,
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var seekCmd = &cobra.Command{
	Use:   "seek <position>",
	Short: "Jump to a position",
	Long: `Jump to a position in the current track.

Examples:
  tunes seek 90       # 1:30 into the track
  tunes seek 2:15
  tunes seek 1m5s`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

var (
	volumeUp   bool
	volumeDown bool
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Show, set or adjust volume",
	Long: `Show the playback volume, set it (0-100) or adjust it up/down.

Examples:
  tunes volume        # Show current volume
  tunes volume 50     # Set volume to 50%
  tunes volume --up   # Increase volume by 10%
  tunes volume --down # Decrease volume by 10%`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var muteCmd = &cobra.Command{
	Use:   "mute",
	Short: "Toggle mute",
	Args:  cobra.NoArgs,
	RunE:  runMute,
}

func init() {
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "Increase volume by 10%")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "Decrease volume by 10%")
	volumeCmd.MarkFlagsMutuallyExclusive("up", "down")

	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(seekCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(muteCmd)
}

// offlineEdit changes the remembered session when no player is running.
// It returns false when there is nothing to save.
type offlineEdit func(mem *playback.Memory) bool

// remote runs fn against the running player. Without one, edit is applied
// to the remembered session; a nil edit means the command needs a player.
func remote(ctx context.Context, fn func(*control.Client) (core.PlaybackState, error), edit offlineEdit) error {
	state, err := fn(control.Dial(socketPath()))
	if err == nil {
		return printState(state, true)
	}
	if !errors.Is(err, control.ErrNotRunning) {
		return err
	}
	if edit == nil {
		return tuneserrors.WithSuggestion(control.ErrNotRunning,
			"Start playback with 'tunes play <source>' or 'tunes resume'")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	mem, err := loadMemory(ctx, st)
	if err != nil {
		return err
	}
	if mem == nil {
		return printState(core.PlaybackState{}, false)
	}
	if edit(mem) {
		mem.SavedAt = time.Now()
		if err := (playback.KVMemory{KV: st}).SaveMemory(ctx, *mem); err != nil {
			return fmt.Errorf("failed to save player memory: %w", err)
		}
	}
	return printState(memoryState(mem), false)
}

// loadMemory returns the remembered session, or nil when there is none or
// it has expired.
func loadMemory(ctx context.Context, kv playback.KV) (*playback.Memory, error) {
	mem, err := (playback.KVMemory{KV: kv}).LoadMemory(ctx)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, nil
	}
	if ttl := config.Seconds(cfg.Player.MemoryDuration); ttl > 0 && time.Since(mem.SavedAt) > ttl {
		return nil, nil
	}
	return mem, nil
}

func memoryState(mem *playback.Memory) core.PlaybackState {
	track := mem.Track
	return core.PlaybackState{
		Track:        &track,
		Status:       core.StatusPaused,
		Position:     mem.Position,
		Duration:     mem.Duration,
		Volume:       mem.Volume,
		Muted:        mem.Muted,
		LastPlayedAt: mem.SavedAt,
	}
}

func runPause(cmd *cobra.Command, args []string) error {
	return remote(cmd.Context(), func(c *control.Client) (core.PlaybackState, error) {
		return c.Pause(cmd.Context())
	}, nil)
}

func runStop(cmd *cobra.Command, args []string) error {
	return remote(cmd.Context(), func(c *control.Client) (core.PlaybackState, error) {
		return c.Stop(cmd.Context())
	}, func(mem *playback.Memory) bool {
		mem.Position = 0
		return true
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	state, err := control.Dial(socketPath()).Clear(ctx)
	if err == nil {
		return printState(state, true)
	}
	if !errors.Is(err, control.ErrNotRunning) {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := (playback.KVMemory{KV: st}).DeleteMemory(ctx); err != nil {
		return fmt.Errorf("failed to clear player memory: %w", err)
	}
	return printState(core.PlaybackState{}, false)
}

func runSeek(cmd *cobra.Command, args []string) error {
	pos, err := ParsePosition(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", tuneserrors.ErrValidation, err)
	}
	return remote(cmd.Context(), func(c *control.Client) (core.PlaybackState, error) {
		return c.Seek(cmd.Context(), pos)
	}, func(mem *playback.Memory) bool {
		if mem.Duration > 0 && pos > mem.Duration {
			pos = mem.Duration
		}
		mem.Position = pos
		return true
	})
}

// volumeTarget resolves the requested level against the current one. ok is
// false when the volume should only be shown.
func volumeTarget(args []string, current float64, up, down bool) (target float64, ok bool, err error) {
	switch {
	case up:
		return min(current+0.1, 1), true, nil
	case down:
		return max(current-0.1, 0), true, nil
	case len(args) == 0:
		return current, false, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid volume level %q", tuneserrors.ErrValidation, args[0])
	}
	if n < 0 || n > 100 {
		return 0, false, fmt.Errorf("%w: volume must be between 0 and 100", tuneserrors.ErrValidation)
	}
	return float64(n) / 100, true, nil
}

func runVolume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) > 0 && (volumeUp || volumeDown) {
		return fmt.Errorf("%w: give a level or --up/--down, not both", tuneserrors.ErrValidation)
	}
	if _, _, err := volumeTarget(args, 0, false, false); err != nil {
		return err
	}

	return remote(ctx, func(c *control.Client) (core.PlaybackState, error) {
		state, err := c.State(ctx)
		if err != nil {
			return state, err
		}
		target, ok, err := volumeTarget(args, state.Volume, volumeUp, volumeDown)
		if err != nil || !ok {
			return state, err
		}
		return c.SetVolume(ctx, target)
	}, func(mem *playback.Memory) bool {
		target, ok, err := volumeTarget(args, mem.Volume, volumeUp, volumeDown)
		if err != nil || !ok {
			return false
		}
		mem.Volume = target
		return true
	})
}

func runMute(cmd *cobra.Command, args []string) error {
	return remote(cmd.Context(), func(c *control.Client) (core.PlaybackState, error) {
		return c.ToggleMute(cmd.Context())
	}, func(mem *playback.Memory) bool {
		mem.Muted = !mem.Muted
		return true
	})
}
