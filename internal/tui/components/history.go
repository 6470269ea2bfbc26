package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/tui/styles"
)

// HistoryEntry represents a track in play history
type HistoryEntry struct {
	Track    core.Track
	PlayedAt time.Time
	Failed   bool
}

// History displays recently played tracks
type History struct{}

// NewHistory creates a new History component
func NewHistory() *History {
	return &History{}
}

// Render renders the history panel
func (h *History) Render(entries []HistoryEntry, now time.Time, width, height int, focused bool) string {
	title := styles.PanelTitle("History", focused)

	var content string
	if len(entries) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(entries, now, width-4, height-4)
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

func (h *History) renderHistory(entries []HistoryEntry, now time.Time, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// icon (2) + " — " (3) + time padding
	const overhead = 14

	for i, entry := range entries {
		if i >= maxLines {
			break
		}

		timeAgo := FormatTimeAgo(entry.PlayedAt, now)

		icon := "✓"
		if entry.Failed {
			icon = "✗"
		}

		name, artist := fitNameArtist(entry.Track.Name, entry.Track.Artist, width-overhead-len(timeAgo), 8)
		info := joinArtist(name, artist)

		padding := max(width-2-lipgloss.Width(info)-len(timeAgo), 1)

		lines = append(lines, fmt.Sprintf("%s %s%s%s",
			styles.Dim.Render(icon),
			info,
			lipgloss.NewStyle().Width(padding).Render(""),
			styles.Dim.Render(timeAgo)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// FormatTimeAgo renders a compact age like "now", "5m" or "3h".
func FormatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)

	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return t.Format("Jan 2")
}
