package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard bindings for the TUI.
type KeyMap struct {
	Reconnect key.Binding
	Cover     key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Cover: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cover url"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
