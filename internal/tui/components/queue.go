package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/tui/styles"
)

// Queue displays the play queue
type Queue struct {
	offset   int
	selected int
}

// NewQueue creates a new Queue component
func NewQueue() *Queue {
	return &Queue{}
}

// SelectNext moves the cursor down, scrolling when needed.
func (q *Queue) SelectNext(n int) {
	if q.selected < n-1 {
		q.selected++
	}
}

// SelectPrev moves the cursor up.
func (q *Queue) SelectPrev() {
	if q.selected > 0 {
		q.selected--
	}
	if q.selected < q.offset {
		q.offset = q.selected
	}
}

// Selected returns the selected index
func (q *Queue) Selected() int {
	return q.selected
}

// Render renders the queue panel
func (q *Queue) Render(queue *core.Queue, width, height int, focused bool) string {
	title := styles.PanelTitle("Queue", focused)

	var content string
	if queue.IsEmpty() {
		content = styles.Muted.Render("Queue is empty")
	} else {
		content = q.renderQueue(queue, width-4, height-4, focused)
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

func (q *Queue) renderQueue(queue *core.Queue, width, maxLines int, focused bool) string {
	tracks := queue.Tracks

	if q.selected >= len(tracks) {
		q.selected = len(tracks) - 1
	}

	// Leave room for the "more" line
	visibleCount := max(maxLines-1, 1)
	if q.selected >= q.offset+visibleCount {
		q.offset = q.selected - visibleCount + 1
	}
	if q.offset >= len(tracks) {
		q.offset = 0
	}

	start := q.offset
	end := min(start+visibleCount, len(tracks))

	lines := make([]string, 0, end-start+1)

	// "XX. " (4) + "▶ " (2) + " — " (3)
	const overhead = 9

	for i := start; i < end; i++ {
		track := tracks[i]
		num := fmt.Sprintf("%2d.", i+1)
		name, artist := fitNameArtist(track.Name, track.Artist, width-overhead, 10)

		var line string
		switch {
		case i == queue.CurrentIndex:
			line = styles.Playing.Render(fmt.Sprintf("%s ▶ %s", num, joinArtist(name, artist)))
		case focused && i == q.selected:
			line = styles.Highlight.Render(fmt.Sprintf("%s › %s", num, joinArtist(name, artist)))
		default:
			line = fmt.Sprintf("%s   %s", styles.Dim.Render(num), name)
			if artist != "" {
				line += " — " + styles.Muted.Render(artist)
			}
		}
		lines = append(lines, line)
	}

	if end < len(tracks) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(tracks)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fitNameArtist truncates name and artist to share available columns,
// keeping at least a third (and minArtist columns) for the artist.
func fitNameArtist(name, artist string, available, minArtist int) (string, string) {
	if len(name)+len(artist) <= available {
		return name, artist
	}

	artistSpace := max(available/3, minArtist)
	if artistSpace > available-minArtist {
		artistSpace = available - minArtist
	}
	if len(artist) < artistSpace {
		artistSpace = len(artist)
	}
	return truncate(name, available-artistSpace), truncate(artist, artistSpace)
}

func joinArtist(name, artist string) string {
	if artist == "" {
		return name
	}
	return name + " — " + artist
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
