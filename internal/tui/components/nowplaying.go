package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/tui/styles"
)

// NowPlaying displays the loaded track and its progress
type NowPlaying struct {
	bar progress.Model
}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	from, to := styles.ProgressColors()
	return &NowPlaying{
		bar: progress.New(progress.WithGradient(from, to), progress.WithoutPercentage()),
	}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(state core.PlaybackState, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !state.HasTrack() {
		content = styles.Muted.Render("Nothing loaded")
	} else {
		content = n.renderTrack(state, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderTrack(state core.PlaybackState, width int) string {
	track := state.Track

	icon := styles.StatusIcon(state.Status)
	title := styles.Title.Width(max(width-4, 1)).Render(track.Name)

	lines := []string{icon + " " + title}
	if track.Artist != "" {
		lines = append(lines, "  "+styles.Subtitle.Render(track.Artist))
	}
	if track.Album != "" {
		lines = append(lines, "  "+styles.Dim.Render(track.Album))
	}

	// Times take 6 columns each side
	n.bar.Width = max(width-14, 10)
	bar := n.bar.ViewAs(state.ProgressPercent() / 100)
	lines = append(lines, "",
		fmt.Sprintf("%s %s %s", formatDuration(state.Position), bar, formatDuration(state.Duration)),
		"",
		n.renderVolume(state),
	)

	if state.Status == core.StatusLoading {
		lines = append(lines, styles.Dim.Render("Loading..."))
	}
	if state.Error != "" {
		lines = append(lines, styles.Failure.Render("⚠ "+state.Error))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (n *NowPlaying) renderVolume(state core.PlaybackState) string {
	if state.Muted {
		return styles.Muted.Render("🔇 muted")
	}
	return styles.Muted.Render(fmt.Sprintf("🔊 %d%%", int(state.Volume*100+0.5)))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
