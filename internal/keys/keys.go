package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings of the wait view.
type KeyMap struct {
	Cancel key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "cancel"),
		),
	}
}

// HelpLine renders the bindings as "key action" pairs.
func (k *KeyMap) HelpLine() string {
	h := k.Cancel.Help()
	return h.Key + " to " + h.Desc
}
