package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/control"
	"github.com/tessro/tunes/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current playback status",
	Long: `Shows what the running player is doing. When no player is running,
shows the remembered track that 'tunes resume' would continue.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state, err := control.Dial(socketPath()).State(ctx)
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

	mem, err := loadMemory(ctx, st)
	if err != nil {
		logger.Debug("unreadable player memory", zap.Error(err))
	}
	if mem == nil {
		return printState(core.PlaybackState{}, false)
	}
	return printState(memoryState(mem), false)
}

// printState prints a playback state. running tells whether it came from a
// live player or from the remembered session.
func printState(s core.PlaybackState, running bool) error {
	if JSONOutput() {
		return printJSON(map[string]any{
			"running": running,
			"state":   s,
		})
	}

	if !s.HasTrack() {
		if running {
			fmt.Println("Nothing loaded")
		} else {
			fmt.Println("No active playback")
		}
		return nil
	}

	status := s.Status.String()
	if !running {
		status = "remembered"
	}
	fmt.Printf("%s %s %s\n", StatusIcon(s.Status), boldColor.Sprint(s.Track.Name), dimColor.Sprintf("[%s]", status))
	if s.Track.Artist != "" || s.Track.Album != "" {
		line := s.Track.Artist
		if s.Track.Album != "" {
			if line != "" {
				line += " - "
			}
			line += s.Track.Album
		}
		fmt.Printf("  %s\n", line)
	}

	fmt.Printf("  %s %s / %s\n",
		FormatProgress(s.Position, s.Duration, 30),
		FormatDuration(s.Position),
		FormatDuration(s.Duration))

	vol := fmt.Sprintf("🔊 %d%%", int(s.Volume*100+0.5))
	if s.Muted {
		vol = "🔇 muted"
	}
	fmt.Printf("  %s\n", vol)

	if s.Error != "" {
		fmt.Printf("  %s\n", errColor.Sprint("⚠ "+s.Error))
	}
	if !running {
		fmt.Println(dimColor.Sprintf("  saved %s; run 'tunes resume' to continue", FormatAgo(s.LastPlayedAt)))
	}
	return nil
}
