package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the monitor's key bindings.
type KeyMap struct {
	Quit key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
