package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tessro/tunes/internal/core"
	"github.com/tessro/tunes/internal/idle"
	"github.com/tessro/tunes/internal/notify"
	"github.com/tessro/tunes/internal/playback"
	"github.com/tessro/tunes/internal/tui/components"
	"github.com/tessro/tunes/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
	PanelActivity
	PanelHistory
	panelCount
)

const (
	seekStep    = 10 * time.Second
	volumeStep  = 0.1
	noticeTTL   = 5 * time.Second
	maxHistory  = 50
	defaultRefresh = time.Second
)

// Activity is the idle detector surface the UI drives.
type Activity interface {
	Notify(event string) bool
	SetMediaPlaying(playing bool)
	State() idle.State
	IdleFor() time.Duration
	Navigate(route string)
}

// Options configures the UI.
type Options struct {
	Player   core.Player
	Events   <-chan playback.Event
	Activity Activity
	Ticks    <-chan idle.Tick
	Notices  <-chan notify.Notification
	Queue    *core.Queue
	Route    string
	Theme    string
	Refresh  time.Duration
	Logger   *zap.Logger
}

type (
	playerMsg playback.Event
	idleMsg   idle.Tick
	noticeMsg notify.Notification
	clockMsg  time.Time
	closedMsg struct{ source string }
)

// Model is the main TUI model
type Model struct {
	ctx      context.Context
	player   core.Player
	activity Activity
	events   <-chan playback.Event
	ticks    <-chan idle.Tick
	notices  <-chan notify.Notification
	logger   *zap.Logger
	route    string

	width        int
	height       int
	focusedPanel Panel
	now          time.Time

	state   core.PlaybackState
	queue   *core.Queue
	history []components.HistoryEntry
	idle    idle.State
	idleFor time.Duration

	nowPlaying  *components.NowPlaying
	queueView   *components.Queue
	idleView    *components.IdlePanel
	historyView *components.History

	keys     keyMap
	help     help.Model
	showHelp bool

	notice       *notify.Notification
	noticeExpiry time.Time

	// set by a user stop so the following Stopped state does not advance
	stopRequested bool

	refresh time.Duration

	quitting bool
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, opts Options) Model {
	if opts.Theme != "" {
		styles.Use(opts.Theme)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := opts.Queue
	if queue == nil {
		queue = &core.Queue{}
	}

	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	m := Model{
		refresh:      refresh,
		ctx:          ctx,
		player:       opts.Player,
		activity:     opts.Activity,
		events:       opts.Events,
		ticks:        opts.Ticks,
		notices:      opts.Notices,
		logger:       logger,
		route:        opts.Route,
		focusedPanel: PanelNowPlaying,
		now:          time.Now(),
		queue:        queue,
		nowPlaying:   components.NewNowPlaying(),
		queueView:    components.NewQueue(),
		idleView:     components.NewIdlePanel(),
		historyView:  components.NewHistory(),
		keys:         newKeyMap(),
		help:         help.New(),
	}
	if m.player != nil {
		m.state = m.player.State()
	}
	if m.activity != nil {
		m.idle = m.activity.State()
	}
	return m
}

func waitEvent(ch <-chan playback.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{source: "player"}
		}
		return playerMsg(ev)
	}
}

func waitTick(ch <-chan idle.Tick) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return closedMsg{source: "idle"}
		}
		return idleMsg(t)
	}
}

func waitNotice(ch <-chan notify.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return closedMsg{source: "notify"}
		}
		return noticeMsg(n)
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// Init starts listening on every source.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		waitEvent(m.events),
		waitTick(m.ticks),
		waitNotice(m.notices),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.touch("keypress")
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		ev := tea.MouseEvent(msg)
		switch {
		case ev.IsWheel():
			m.touch("scroll")
		case ev.Action == tea.MouseActionPress:
			m.touch("mousedown")
		case ev.Action == tea.MouseActionMotion:
			m.touch("mousemove")
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case clockMsg:
		m.now = time.Time(msg)
		if m.notice != nil && m.now.After(m.noticeExpiry) {
			m.notice = nil
		}
		if m.activity != nil {
			m.idle = m.activity.State()
			m.idleFor = m.activity.IdleFor()
		}
		return m, m.tick()

	case playerMsg:
		cmd := m.handlePlayerEvent(playback.Event(msg))
		return m, tea.Batch(cmd, waitEvent(m.events))

	case idleMsg:
		m.idle = msg.State
		m.idleFor = msg.IdleFor
		return m, waitTick(m.ticks)

	case noticeMsg:
		n := notify.Notification(msg)
		m.notice = &n
		m.noticeExpiry = m.now.Add(noticeTTL)
		return m, waitNotice(m.notices)

	case closedMsg:
		m.logger.Debug("event source closed", zap.String("source", msg.source))
		return m, nil
	}

	return m, nil
}

func (m *Model) handlePlayerEvent(ev playback.Event) tea.Cmd {
	prev := m.state
	m.state = ev.State

	if m.activity != nil {
		m.activity.SetMediaPlaying(m.state.IsPlaying())
	}

	switch ev.Type {
	case playback.EventTrackChange:
		if m.state.Track != nil {
			m.addToHistory(*m.state.Track, false)
		}
	case playback.EventError:
		if m.state.Track != nil && len(m.history) > 0 && m.history[0].Track.ID == m.state.Track.ID {
			m.history[0].Failed = true
		}
	}

	ended := prev.Status == core.StatusPlaying &&
		m.state.Status == core.StatusStopped &&
		m.state.Error == "" &&
		!m.stopRequested
	if m.state.Status != core.StatusPlaying {
		m.stopRequested = false
	}
	if ended {
		return m.playQueued(m.queue.Next())
	}
	return nil
}

// routes are the pages the route key cycles through.
var routes = append([]string{"/"}, idle.ShowcaseRoutes...)

func nextRoute(current string) string {
	for i, r := range routes {
		if r == current {
			return routes[(i+1)%len(routes)]
		}
	}
	return routes[0]
}

func (m *Model) navigate(route string) {
	m.route = route
	if m.activity == nil {
		return
	}
	m.activity.Navigate(route)
	m.idle = m.activity.State()
}

func (m *Model) touch(event string) {
	if m.activity == nil {
		return
	}
	if m.activity.Notify(event) {
		m.idle = m.activity.State()
		m.idleFor = 0
	}
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Close, m.keys.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		m.help.ShowAll = true
		return m, nil

	case key.Matches(msg, m.keys.NextPanel):
		m.focusedPanel = (m.focusedPanel + 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.PrevPanel):
		m.focusedPanel = (m.focusedPanel + panelCount - 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.Route):
		m.navigate(nextRoute(m.route))
		return m, nil
	}

	if m.player == nil {
		return m, nil
	}

	if m.focusedPanel == PanelQueue {
		switch {
		case key.Matches(msg, m.keys.Down):
			m.queueView.SelectNext(m.queue.Len())
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.queueView.SelectPrev()
			return m, nil
		case key.Matches(msg, m.keys.Select):
			idx := m.queueView.Selected()
			if idx >= 0 && idx < m.queue.Len() {
				m.queue.CurrentIndex = idx
				return m, m.playQueued(m.queue.Current())
			}
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.PlayPause):
		return m, m.togglePlayPause()

	case key.Matches(msg, m.keys.SeekBack):
		m.player.Seek(max(m.state.Position-seekStep, 0))

	case key.Matches(msg, m.keys.SeekForward):
		m.player.Seek(m.state.Position + seekStep)

	case key.Matches(msg, m.keys.VolumeUp):
		m.player.SetVolume(min(m.state.Volume+volumeStep, 1))

	case key.Matches(msg, m.keys.VolumeDown):
		m.player.SetVolume(max(m.state.Volume-volumeStep, 0))

	case key.Matches(msg, m.keys.Mute):
		m.player.ToggleMute()

	case key.Matches(msg, m.keys.Stop):
		m.stopRequested = true
		m.player.Stop()

	case key.Matches(msg, m.keys.Clear):
		m.stopRequested = true
		m.player.Clear()

	case key.Matches(msg, m.keys.Dismiss):
		m.player.ClearError()
		m.notice = nil

	case key.Matches(msg, m.keys.Next):
		return m, m.playQueued(m.queue.Next())

	case key.Matches(msg, m.keys.Prev):
		return m, m.playQueued(m.queue.Prev())
	}

	return m, nil
}

func (m *Model) togglePlayPause() tea.Cmd {
	switch m.state.Status {
	case core.StatusPlaying:
		m.player.Pause()
	case core.StatusPaused:
		m.player.Resume()
	case core.StatusStopped:
		if m.state.Track != nil {
			m.player.PlayTrack(m.ctx, *m.state.Track, m.state.Position)
			return nil
		}
		return m.playQueued(m.queue.Current())
	}
	return nil
}

func (m *Model) playQueued(track *core.Track) tea.Cmd {
	if track == nil || m.player == nil {
		return nil
	}
	m.stopRequested = false
	m.player.PlayTrack(m.ctx, *track, 0)
	return nil
}

func (m *Model) addToHistory(track core.Track, failed bool) {
	entry := components.HistoryEntry{
		Track:    track,
		PlayedAt: m.now,
		Failed:   failed,
	}

	m.history = append([]components.HistoryEntry{entry}, m.history...)
	if len(m.history) > maxHistory {
		m.history = m.history[:maxHistory]
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	// Left: Now Playing over Queue. Right: Activity over History.
	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 45 / 100
	bottomHeight := m.height - topHeight - 3

	nowPlaying := m.nowPlaying.Render(m.state, leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	queueView := m.queueView.Render(m.queue, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelQueue)
	idleView := m.idleView.Render(m.idle, m.idleFor, m.route, m.now, rightWidth-2, topHeight-2, m.focusedPanel == PanelActivity)
	historyView := m.historyView.Render(m.history, m.now, rightWidth-2, bottomHeight-2, m.focusedPanel == PanelHistory)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, idleView, historyView)

	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := m.help.ShortHelpView(m.keys.ShortHelp())

	if m.notice != nil {
		text := m.notice.Message
		if m.notice.Title != "" {
			text = m.notice.Title + ": " + text
		}
		status = styles.LevelStyle(m.notice.Level).Render(text)
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := styles.Highlight.Render("tunes - Keyboard Shortcuts")
	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		m.help.FullHelpView(m.keys.FullHelp()),
		"",
		styles.Dim.Render("Press ? or Esc to close"),
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Padding(1, 2).Render(body))
}

// Run starts the TUI application
func Run(ctx context.Context, opts Options) error {
	model := NewModel(ctx, opts)
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
