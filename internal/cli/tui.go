package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/playback"
)

var tuiCmd = &cobra.Command{
	Use:     "ui [sources...]",
	Aliases: []string{"tui"},
	Short:   "Launch the mini-player",
	Long: `Launch the interactive mini-player.

The dashboard shows:
  • Now Playing - current track, progress and volume
  • Queue - the tracks given on the command line
  • Activity - idle detection and what it would show
  • History - tracks played this session

With sources the first one starts playing; without, the remembered track
is loaded paused.

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  Space        Play/Pause
  ←/→          Seek 10s
  +/-          Volume up/down
  m            Mute
  n/p          Next/previous in queue
  r            Switch page (changes what the idle panel suggests)
  Tab          Switch panel`,
	RunE: runTUI,
}

var uiRoute string

func init() {
	tuiCmd.Flags().StringVar(&uiRoute, "route", "/", "page the idle mode is chosen for (e.g. /music-tools)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	queue := &core.Queue{}
	for _, src := range args {
		queue.Append(trackFromSource(src, "", "", ""))
	}

	return runForeground(cmd.Context(), true, queue, func(ctx context.Context, c *playback.Controller) error {
		if t := queue.Current(); t != nil {
			c.PlayTrack(ctx, *t, 0)
		}
		return nil
	})
}
