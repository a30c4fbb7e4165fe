// ABOUTME: Key bindings for the progress view
// ABOUTME: Maps volume and quit keys and renders the help line
package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the playback view's key bindings
type keyMap struct {
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		VolumeUp: key.NewBinding(
			key.WithKeys("up", "k", "+"),
			key.WithHelp("↑/k", "volume up"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("down", "j", "-"),
			key.WithHelp("↓/j", "volume down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "stop"),
		),
	}
}

// helpLine renders the bindings as a single line
func (k keyMap) helpLine() string {
	line := ""
	for i, b := range []key.Binding{k.VolumeUp, k.VolumeDown, k.Quit} {
		if i > 0 {
			line += "  "
		}
		h := b.Help()
		line += h.Key + " " + h.Desc
	}
	return line
}
