package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	Help      key.Binding
	Close     key.Binding
	NextPanel key.Binding
	PrevPanel key.Binding

	PlayPause   key.Binding
	SeekBack    key.Binding
	SeekForward key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	Mute        key.Binding
	Stop        key.Binding
	Clear       key.Binding
	Dismiss     key.Binding
	Next        key.Binding
	Prev        key.Binding
	Route       key.Binding

	Up     key.Binding
	Down   key.Binding
	Select key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Close:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		NextPanel: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
		PrevPanel: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev panel")),

		PlayPause:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		SeekBack:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "back 10s")),
		SeekForward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "ahead 10s")),
		VolumeUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		VolumeDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		Mute:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Stop:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Clear:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear player")),
		Dismiss:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "dismiss error")),
		Next:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next track")),
		Prev:        key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous track")),
		Route:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "switch page")),

		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play selected")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help, k.PlayPause, k.Next, k.Prev, k.VolumeUp, k.VolumeDown, k.NextPanel}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Help, k.NextPanel, k.PrevPanel},
		{k.PlayPause, k.SeekBack, k.SeekForward, k.Stop, k.Clear},
		{k.VolumeUp, k.VolumeDown, k.Mute, k.Dismiss, k.Route},
		{k.Next, k.Prev, k.Up, k.Down, k.Select},
	}
}
