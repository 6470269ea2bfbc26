package styles

import (
	"os"
	"strings"

	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/notify"
)

// Colors, filled from the active catppuccin flavor by Use.
var (
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	Border    lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	TextDim   lipgloss.Color
)

// Text styles
var (
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Label     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style
	Dim       lipgloss.Style
	Playing   lipgloss.Style
	Paused    lipgloss.Style
	Failure   lipgloss.Style
)

// Border styles
var (
	BorderStyle   lipgloss.Style
	FocusedBorder lipgloss.Style
)

var flavor catppuccin.Flavor

func init() {
	Use("auto")
}

// FlavorFor maps a theme setting (auto, dark, light) to a catppuccin flavor.
// Auto follows the terminal background.
func FlavorFor(theme string) catppuccin.Flavor {
	switch strings.ToLower(theme) {
	case "light":
		return catppuccin.Latte
	case "dark":
		return catppuccin.Mocha
	default:
		if os.Getenv("NO_COLOR") == "" && !lipgloss.HasDarkBackground() {
			return catppuccin.Latte
		}
		return catppuccin.Mocha
	}
}

// Use switches the palette and rebuilds every style.
func Use(theme string) {
	flavor = FlavorFor(theme)

	Primary = hex(flavor.Mauve())
	Secondary = hex(flavor.Teal())
	Accent = hex(flavor.Peach())
	Success = hex(flavor.Green())
	Warning = hex(flavor.Yellow())
	Error = hex(flavor.Red())
	Info = hex(flavor.Blue())
	Border = hex(flavor.Surface2())
	Text = hex(flavor.Text())
	TextMuted = hex(flavor.Subtext0())
	TextDim = hex(flavor.Overlay1())

	Title = lipgloss.NewStyle().Bold(true).Foreground(Text)
	Subtitle = lipgloss.NewStyle().Foreground(TextMuted)
	Label = lipgloss.NewStyle().Foreground(TextDim)
	Highlight = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	Muted = lipgloss.NewStyle().Foreground(TextMuted)
	Dim = lipgloss.NewStyle().Foreground(TextDim)
	Playing = lipgloss.NewStyle().Foreground(Success)
	Paused = lipgloss.NewStyle().Foreground(Warning)
	Failure = lipgloss.NewStyle().Foreground(Error)

	BorderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border)
	FocusedBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary)
}

// FlavorName returns the active flavor's name.
func FlavorName() string {
	return flavor.Name()
}

func hex(c catppuccin.Color) lipgloss.Color {
	return lipgloss.Color(c.Hex)
}

// Panel creates a styled panel with optional focus
func Panel(focused bool) lipgloss.Style {
	if focused {
		return FocusedBorder.Padding(0, 1)
	}
	return BorderStyle.Padding(0, 1)
}

// PanelTitle creates a styled panel title
func PanelTitle(title string, focused bool) string {
	style := Label
	if focused {
		style = Highlight
	}
	return style.Render(" " + title + " ")
}

// StatusIcon returns an icon for playback status
func StatusIcon(status core.PlaybackStatus) string {
	switch status {
	case core.StatusPlaying:
		return Playing.Render("▶")
	case core.StatusPaused:
		return Paused.Render("⏸")
	case core.StatusLoading:
		return Dim.Render("…")
	default:
		return Dim.Render("■")
	}
}

// LevelStyle returns the style for a notification level.
func LevelStyle(level notify.Level) lipgloss.Style {
	switch level {
	case notify.LevelSuccess:
		return lipgloss.NewStyle().Foreground(Success)
	case notify.LevelWarning:
		return lipgloss.NewStyle().Foreground(Warning)
	case notify.LevelError:
		return Failure
	default:
		return lipgloss.NewStyle().Foreground(Info)
	}
}

// ProgressColors returns the gradient endpoints for progress bars.
func ProgressColors() (string, string) {
	return flavor.Mauve().Hex, flavor.Sapphire().Hex
}
