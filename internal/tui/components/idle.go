package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/tessro/tunes/internal/idle"
	"github.com/tessro/tunes/internal/tui/styles"
)

// Facts are shown to an idle user in fact mode.
var Facts = []string{
	"Bartolomeo Cristofori built the first piano in Italy around 1700.",
	"Mozart wrote his first symphony when he was eight.",
	"A standard guitar is tuned E A D G B E.",
	"John Cage's 4′33″ is four and a half minutes of silence.",
	"Beethoven wrote much of his best known work after losing his hearing.",
	"The theremin is played without being touched.",
	"The oldest known instrument is a bone flute over 40,000 years old.",
	"Tip: press ? for every keyboard shortcut.",
}

// FallbackFact is shown when no fact can be picked.
const FallbackFact = "Music can lift your mood and sharpen your focus."

// IdlePanel shows idle detection state and re-engagement content.
type IdlePanel struct{}

// NewIdlePanel creates a new IdlePanel component
func NewIdlePanel() *IdlePanel {
	return &IdlePanel{}
}

// FactFor picks the fact for an idle period. Each activation shows the next one.
func FactFor(activation int) string {
	if len(Facts) == 0 {
		return FallbackFact
	}
	if activation < 0 {
		activation = -activation
	}
	return Facts[activation%len(Facts)]
}

// Render renders the idle panel
func (p *IdlePanel) Render(state idle.State, idleFor time.Duration, route string, now time.Time, width, height int, focused bool) string {
	title := styles.PanelTitle("Activity", focused)

	var lines []string
	if state.Idle() {
		mode := idle.ModeFor(idleFor, route, state.Online)
		lines = append(lines,
			styles.Paused.Render("Idle")+styles.Dim.Render(" for "+strings.TrimSpace(humanize.RelTime(now.Add(-idleFor), now, "", ""))),
			"",
			p.renderMode(mode, state),
		)
	} else {
		lines = append(lines, styles.Playing.Render("Active"))
		if !state.LastActivity.IsZero() {
			lines = append(lines, styles.Dim.Render("last input "+humanize.RelTime(state.LastActivity, now, "ago", "from now")))
		}
	}

	lines = append(lines, "",
		styles.Label.Render(fmt.Sprintf("threshold %s · activations %d", state.Threshold, state.ActivationCount)),
	)
	if state.MediaPlaying {
		lines = append(lines, styles.Label.Render("paused while media plays"))
	}
	if !state.Online {
		lines = append(lines, styles.Paused.Render("offline"))
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		append([]string{title, ""}, wrapAll(lines, width-4)...)...,
	))
}

func (p *IdlePanel) renderMode(mode idle.Mode, state idle.State) string {
	switch mode {
	case idle.ModeBackground:
		return styles.Dim.Render("~ ~ ~ ~ ~ ~")
	case idle.ModeShowcase:
		return styles.Highlight.Render("Explore the library while you're here.")
	case idle.ModeGame:
		return styles.Highlight.Render("Still there? Press any key to jump back in.")
	default:
		return styles.Subtitle.Render(FactFor(state.ActivationCount - 1))
	}
}

func wrapAll(lines []string, width int) []string {
	if width <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	style := lipgloss.NewStyle().Width(width)
	for i, l := range lines {
		out[i] = style.Render(l)
	}
	return out
}
