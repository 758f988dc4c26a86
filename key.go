package main

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/huh"
)

type keymap struct {
	listKeymap

	viewportKeymap viewport.KeyMap
	textAreaKeymap textarea.KeyMap
	formKeymap     *huh.KeyMap

	submit    key.Binding
	openHelp  key.Binding
	closeHelp key.Binding
	quit      key.Binding
	escape    key.Binding

	viewState viewState
}

type listKeymap struct {
	pick key.Binding // Can't use select because it's a reserved word
}

func newKeymap() keymap {
	km := keymap{
		listKeymap:     newListKeymap(),
		viewportKeymap: newViewportKeymap(),
		textAreaKeymap: newTextAreaKeymap(),
		formKeymap:     newFormKeymap(),
		submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "submit"),
		),
		openHelp: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "more"),
		),
		closeHelp: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "close help"),
		),
		quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		viewState: viewStateMenu,
	}
	km.closeHelp.SetEnabled(false)

	return km
}

func newListKeymap() listKeymap {
	return listKeymap{
		pick: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
	}
}

func newViewportKeymap() viewport.KeyMap {
	km := viewport.DefaultKeyMap()

	km.HalfPageDown.SetEnabled(false)
	km.HalfPageUp.SetEnabled(false)

	km.Up.SetKeys("ctrl+p")
	km.Up.SetHelp("ctrl+p", "scroll up")

	km.Down.SetKeys("ctrl+n")
	km.Down.SetHelp("ctrl+n", "scroll down")

	km.PageUp.SetKeys("pgup")
	km.PageUp.SetHelp("pgup", "page up")

	km.PageDown.SetKeys("pgdn")
	km.PageDown.SetHelp("pgdn", "page down")

	return km
}

func newTextAreaKeymap() textarea.KeyMap {
	km := textarea.DefaultKeyMap

	km.LineNext.SetKeys("down")
	km.LineNext.SetHelp("down", "next line")

	km.LinePrevious.SetKeys("up")
	km.LinePrevious.SetHelp("up", "previous line")

	return km
}

// newFormKeymap leaves esc to the model, which uses it to leave the form.
func newFormKeymap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit.SetKeys("ctrl+c")
	return km
}

func (k keymap) FullHelp() [][]key.Binding {
	switch k.viewState {
	case viewStatePrompt:
		return [][]key.Binding{
			{k.viewportKeymap.Up, k.viewportKeymap.Down, k.viewportKeymap.PageUp, k.viewportKeymap.PageDown, k.escape},
			{k.textAreaKeymap.InsertNewline, k.submit, k.quit, k.closeHelp},
		}
	case viewStateNote:
		return [][]key.Binding{
			{k.viewportKeymap.Up, k.viewportKeymap.Down, k.viewportKeymap.PageUp, k.viewportKeymap.PageDown},
			{k.escape, k.quit, k.closeHelp},
		}
	}
	return [][]key.Binding{{k.pick, k.escape, k.quit}}
}

func (k keymap) ShortHelp() []key.Binding {
	switch k.viewState {
	case viewStatePrompt:
		return []key.Binding{k.textAreaKeymap.InsertNewline, k.submit, k.escape, k.openHelp}
	case viewStateNote:
		return []key.Binding{k.escape, k.quit, k.openHelp}
	}
	return []key.Binding{k.pick, k.quit}
}
