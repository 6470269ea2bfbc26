package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/config"
	"github.com/tessro/tunes/internal/control"
	"github.com/tessro/tunes/internal/core"
	tuneserrors "github.com/tessro/tunes/internal/errors"
	"github.com/tessro/tunes/internal/notify"
	"github.com/tessro/tunes/internal/playback"
	"github.com/tessro/tunes/internal/tui"
)

const onlineCheckInterval = 30 * time.Second

var (
	playName   string
	playArtist string
	playAlbum  string
	playStart  string
	playTUI    bool
)

var playCmd = &cobra.Command{
	Use:   "play <source>",
	Short: "Play an audio track",
	Long: `Play an audio file or URL (mp3 or wav).

If a player is already running the track is handed to it. Otherwise this
process becomes the player and keeps running until the track ends or you
press Ctrl+C. Interrupted playback is remembered for a few minutes so
'tunes resume' can pick it up.

Examples:
  tunes play ~/Music/scales.mp3
  tunes play https://example.com/lesson.mp3 --name "Lesson 3" --start 1:30
  tunes play song.wav --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume playback",
	Long:  `Resume the running player, or pick up the remembered track where it left off.`,
	Args:  cobra.NoArgs,
	RunE:  runResume,
}

func init() {
	playCmd.Flags().StringVar(&playName, "name", "", "track name (default: file name)")
	playCmd.Flags().StringVar(&playArtist, "artist", "", "track artist")
	playCmd.Flags().StringVar(&playAlbum, "album", "", "track album")
	playCmd.Flags().StringVarP(&playStart, "start", "s", "", "start position (e.g. 90, 1:30, 1m30s)")
	playCmd.Flags().BoolVar(&playTUI, "tui", false, "show the mini-player")
	resumeCmd.Flags().BoolVar(&playTUI, "tui", false, "show the mini-player")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(resumeCmd)
}

// trackFromSource builds a track for a file path or URL.
func trackFromSource(src, name, artist, album string) core.Track {
	if name == "" {
		base := src
		if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			base = u.Path
		}
		base = path.Base(strings.ReplaceAll(base, "\\", "/"))
		name = strings.TrimSuffix(base, path.Ext(base))
		if name == "" || name == "." || name == "/" {
			name = src
		}
	}
	return core.Track{
		ID:     src,
		Name:   name,
		Artist: artist,
		Album:  album,
		Source: src,
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	var start time.Duration
	if playStart != "" {
		d, err := ParsePosition(playStart)
		if err != nil {
			return fmt.Errorf("%w: %w", tuneserrors.ErrValidation, err)
		}
		start = d
	}
	track := trackFromSource(args[0], playName, playArtist, playAlbum)

	state, err := control.Dial(socketPath()).Play(cmd.Context(), track, start)
	if err == nil {
		return printState(state, true)
	}
	if !errors.Is(err, control.ErrNotRunning) {
		return err
	}

	return runForeground(cmd.Context(), playTUI, nil, func(ctx context.Context, c *playback.Controller) error {
		c.PlayTrack(ctx, track, start)
		return nil
	})
}

func runResume(cmd *cobra.Command, args []string) error {
	state, err := control.Dial(socketPath()).Resume(cmd.Context())
	if err == nil {
		return printState(state, true)
	}
	if !errors.Is(err, control.ErrNotRunning) {
		return err
	}

	return runForeground(cmd.Context(), playTUI, nil, func(ctx context.Context, c *playback.Controller) error {
		s := c.State()
		if !s.HasTrack() {
			return tuneserrors.WithSuggestion(tuneserrors.ErrNoTrack, "Start something with 'tunes play <source>'")
		}
		c.Resume()
		return nil
	})
}

// runForeground makes this process the player. The control socket lets
// other tunes commands drive it. start runs once everything is wired.
func runForeground(parent context.Context, withTUI bool, queue *core.Queue, start func(context.Context, *playback.Controller) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	notices := notify.NewChannel(16)
	var notifier notify.Notifier = terminalNotifier()
	if withTUI {
		notifier = notify.Multi{notices, notify.Log{Logger: logger}}
	}

	ctrl := newController(st, notifier)
	defer ctrl.Close()

	srv := control.NewServer(ctx, ctrl, logger.Named("control"))
	if err := srv.Listen(socketPath()); err != nil {
		return err
	}
	srv.Start()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	detector := newDetector()
	detector.Start()
	defer detector.Stop()
	if client, err := newBackend(); err == nil {
		go detector.WatchOnline(ctx, onlineCheckInterval, client.Ping)
	} else {
		logger.Debug("connectivity checks disabled", zap.Error(err))
	}

	gate := ctrl.Subscribe()
	defer gate.Close()
	go gateIdle(gate, detector)

	if withTUI {
		events := ctrl.Subscribe()
		defer events.Close()
		ticks, unsubscribe := detector.Subscribe()
		defer unsubscribe()

		if err := start(ctx, ctrl); err != nil {
			return err
		}
		return tui.Run(ctx, tui.Options{
			Player:   ctrl,
			Events:   events.C(),
			Activity: detector,
			Ticks:    ticks,
			Notices:  notices.C(),
			Queue:    queue,
			Route:    uiRoute,
			Theme:    cfg.TUI.Theme,
			Refresh:  config.Millis(cfg.TUI.RefreshInterval),
			Logger:   logger.Named("tui"),
		})
	}

	events := ctrl.Subscribe()
	defer events.Close()
	if err := start(ctx, ctrl); err != nil {
		return err
	}
	return followPlayback(ctx, ctrl, events)
}

// followPlayback prints player events until the track ends, the player is
// stopped or cleared, or ctx is cancelled. Cancelling pauses so the
// position is remembered.
func followPlayback(ctx context.Context, ctrl *playback.Controller, sub *playback.Subscription) error {
	var active bool
	for {
		select {
		case <-ctx.Done():
			ctrl.Pause()
			s := ctrl.State()
			if !JSONOutput() && s.HasTrack() {
				fmt.Printf("\n⏸ Paused at %s. Run 'tunes resume' to continue.\n", FormatDuration(s.Position))
			}
			return nil

		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			printEvent(ev)

			switch ev.State.Status {
			case core.StatusLoading, core.StatusPlaying, core.StatusPaused:
				active = true
			case core.StatusStopped:
				if !active {
					continue
				}
				if ev.State.Error != "" {
					return tuneserrors.New(tuneserrors.KindMedia, fmt.Errorf("%w: %s", tuneserrors.ErrMediaLoad, ev.State.Error))
				}
				return nil
			}
			if ev.Type == playback.EventCleared {
				return nil
			}
		}
	}
}

func printEvent(ev playback.Event) {
	if JSONOutput() {
		_ = printJSON(map[string]any{"event": ev.Type.String(), "state": ev.State})
		return
	}

	s := ev.State
	switch ev.Type {
	case playback.EventTrackChange:
		if s.Track != nil {
			fmt.Printf("%s %s\n", boldColor.Sprint("♪"), s.Track.DisplayName())
		}
	case playback.EventStateChange:
		line := fmt.Sprintf("%s %s", StatusIcon(s.Status), s.Status)
		if s.Duration > 0 {
			line += dimColor.Sprintf("  %s / %s", FormatDuration(s.Position), FormatDuration(s.Duration))
		}
		fmt.Println(line)
	case playback.EventError:
		fmt.Println(errColor.Sprint("✗ " + s.Error))
	case playback.EventCleared:
		fmt.Println(dimColor.Sprint("Player cleared"))
	case playback.EventProgress:
		logger.Debug("progress", zap.Duration("position", s.Position))
	}
}
