package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down      key.Binding
	Select        key.Binding
	Back          key.Binding
	Mark          key.Binding
	ClearMarks    key.Binding
	Filter        key.Binding
	Rename        key.Binding
	BulkRename    key.Binding
	Ungroup       key.Binding
	UngroupMarked key.Binding
	Visibility    key.Binding
	Hide          key.Binding
	ShowAll       key.Binding
	HideAll       key.Binding
	Focus         key.Binding
	Reset         key.Binding
	Import        key.Binding
	Export        key.Binding
	Quit          key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Mark:          key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark")),
		ClearMarks:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear marks")),
		Filter:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Rename:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		BulkRename:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "rename marked")),
		Ungroup:       key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "ungroup")),
		UngroupMarked: key.NewBinding(key.WithKeys("U"), key.WithHelp("U", "ungroup marked")),
		Visibility:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "toggle visible")),
		Hide:          key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hide selection")),
		ShowAll:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "show all")),
		HideAll:       key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "hide all")),
		Focus:         key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "focus")),
		Reset:         key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset all")),
		Import:        key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import")),
		Export:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Select, k.Mark, k.Filter, k.Rename, k.BulkRename, k.Ungroup, k.Visibility, k.Focus, k.Export, k.Quit}
}
