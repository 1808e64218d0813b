// Package tui is the terminal sidebar for the viewer: the group list with
// search, the selection panel and the rename, ungroup, import and export
// dialogs.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"myoview/internal/persistence"
	"myoview/internal/selection"
	"myoview/internal/viewer"
)

type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeRename
	modeBulkRename
	modeImport
	modeUngroup
	modeConfirmReset
)

const frameInterval = 50 * time.Millisecond

type frameMsg time.Time

// Model is the Bubbletea model.
type Model struct {
	svc     *viewer.Service
	keys    keyMap
	mode    mode
	input   textinput.Model
	query   string
	rows    []viewer.Row
	cursor  int
	notices []viewer.Notice

	candidates []string
	chosen     map[string]bool
	ungroupAt  int

	width, height int
}

// New builds the sidebar over svc.
func New(svc *viewer.Service) Model {
	ti := textinput.New()
	ti.CharLimit = 120
	ti.Width = 40
	m := Model{svc: svc, keys: defaultKeys(), input: ti}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.svc.Frame(time.Time(msg))
		return m, tick()
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeBrowse:
			return m.handleBrowseKey(msg)
		case modeUngroup:
			return m.handleUngroupKey(msg), nil
		case modeConfirmReset:
			return m.handleConfirmKey(msg), nil
		default:
			return m.handleInputKey(msg)
		}
	}
	return m, nil
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		if row, ok := m.current(); ok {
			m.svc.SelectGroup(row.Name)
		}
	case key.Matches(msg, m.keys.Back):
		if m.query != "" {
			m.query = ""
		} else {
			m.svc.CloseSelection()
		}
	case key.Matches(msg, m.keys.Mark):
		if row, ok := m.current(); ok {
			m.svc.ToggleGroupMulti(row.Name, !row.Marked)
		}
	case key.Matches(msg, m.keys.ClearMarks):
		m.svc.ClearMulti()
	case key.Matches(msg, m.keys.Filter):
		return m.prompt(modeFilter, "search", m.query)
	case key.Matches(msg, m.keys.Rename):
		if v := m.svc.View(); v.Panel != nil {
			return m.prompt(modeRename, "new name (empty restores originals)", v.Panel.NameField)
		}
		m.svc.Report(viewer.ErrNoSelection)
	case key.Matches(msg, m.keys.BulkRename):
		if m.svc.View().Actions.RenameEnabled {
			return m.prompt(modeBulkRename, "name for marked meshes", "")
		}
		m.svc.Report(viewer.ErrNoSelection)
	case key.Matches(msg, m.keys.Ungroup):
		_ = m.svc.UngroupActive(ctx)
	case key.Matches(msg, m.keys.UngroupMarked):
		m.candidates = m.svc.UngroupCandidates()
		if len(m.candidates) == 0 {
			_ = m.svc.Ungroup(ctx)
			break
		}
		m.chosen = make(map[string]bool, len(m.candidates))
		for _, id := range m.candidates {
			m.chosen[id] = true
		}
		m.ungroupAt = 0
		m.mode = modeUngroup
	case key.Matches(msg, m.keys.Visibility):
		if row, ok := m.current(); ok {
			m.svc.ToggleGroupVisibility(row.Name)
		}
	case key.Matches(msg, m.keys.Hide):
		_ = m.svc.HideActive()
	case key.Matches(msg, m.keys.ShowAll):
		m.svc.ShowAll()
	case key.Matches(msg, m.keys.HideAll):
		m.svc.HideAll()
	case key.Matches(msg, m.keys.Focus):
		_ = m.svc.FocusActive()
	case key.Matches(msg, m.keys.Reset):
		m.mode = modeConfirmReset
	case key.Matches(msg, m.keys.Import):
		return m.prompt(modeImport, "mapping file to import", "")
	case key.Matches(msg, m.keys.Export):
		_, _ = m.svc.Export(ctx)
	}
	m.reload()
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	switch msg.String() {
	case "esc":
		if m.mode == modeFilter {
			m.query = ""
		}
		m.mode = modeBrowse
		m.input.Blur()
		m.reload()
		return m, nil
	case "enter":
		value := m.input.Value()
		switch m.mode {
		case modeFilter:
			m.query = value
		case modeRename:
			_ = m.svc.RenameActive(ctx, value)
		case modeBulkRename:
			if err := m.svc.BulkRename(ctx, value); err != nil {
				m.reload()
				return m, nil
			}
		case modeImport:
			m.importFile(ctx, value)
		}
		m.mode = modeBrowse
		m.input.Blur()
		m.reload()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeFilter {
		m.query = m.input.Value()
		m.reload()
	}
	return m, cmd
}

func (m Model) handleUngroupKey(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
	case "up", "k":
		if m.ungroupAt > 0 {
			m.ungroupAt--
		}
	case "down", "j":
		if m.ungroupAt < len(m.candidates)-1 {
			m.ungroupAt++
		}
	case " ":
		id := m.candidates[m.ungroupAt]
		m.chosen[id] = !m.chosen[id]
	case "enter":
		var ids []string
		for _, id := range m.candidates {
			if m.chosen[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			m.notices = append(m.notices, viewer.Notice{Level: viewer.LevelError, Message: "Choose at least one mesh."})
			break
		}
		_ = m.svc.Ungroup(context.Background(), ids...)
		m.mode = modeBrowse
	}
	m.reload()
	return m
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) Model {
	if msg.String() == "y" {
		m.svc.ResetAll(context.Background())
	}
	m.mode = modeBrowse
	m.reload()
	return m
}

func (m Model) prompt(md mode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = md
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) importFile(ctx context.Context, path string) {
	raw, err := persistence.ReadImportFile(strings.TrimSpace(path))
	if err != nil {
		m.notices = append(m.notices, viewer.Notice{Level: viewer.LevelError, Message: err.Error()})
		return
	}
	_, _ = m.svc.Import(ctx, raw)
}

func (m *Model) reload() {
	m.rows = m.svc.Filter(m.query)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if n := m.svc.Notices(); len(n) > 0 {
		m.notices = append(m.notices, n...)
	}
	if len(m.notices) > 3 {
		m.notices = m.notices[len(m.notices)-3:]
	}
}

func (m Model) current() (viewer.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return viewer.Row{}, false
	}
	return m.rows[m.cursor], true
}

// View implements tea.Model.
func (m Model) View() string {
	v := m.svc.View()
	sidebar := SidebarStyle.Render(m.renderRows())
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", m.renderPanel(v))
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Muscle names"))
	if v.Degraded {
		b.WriteString(" " + WarnStyle.Render("(not saving)"))
	}
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.renderFooter(v))
	return b.String()
}

func (m Model) renderRows() string {
	if len(m.rows) == 0 {
		return DimmedStyle.Render("no matches")
	}
	var b strings.Builder
	for i, r := range m.rows {
		mark := "[ ]"
		if r.Marked {
			mark = "[x]"
		}
		eye := "●"
		if !r.Visible {
			eye = "○"
		}
		label := r.Label
		if r.Custom {
			label += " *"
		}
		line := fmt.Sprintf("%s %s %s", mark, eye, label)
		switch {
		case i == m.cursor:
			line = CursorStyle.Render("> " + line)
		case r.Active:
			line = ActiveStyle.Render("  " + line)
		case !r.Visible:
			line = DimmedStyle.Render("  " + line)
		default:
			line = ItemStyle.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderPanel(v viewer.View) string {
	var b strings.Builder
	if v.Panel != nil {
		b.WriteString(ActiveStyle.Render(v.Panel.Title) + "\n")
		b.WriteString(DimmedStyle.Render(v.Panel.MemberSummary) + "\n")
	} else {
		b.WriteString(DimmedStyle.Render("Nothing selected") + "\n")
	}
	if v.Tooltip.Visible {
		b.WriteString("hover: " + v.Tooltip.Text + "\n")
	}
	if v.Actions.Count > 0 {
		b.WriteString(fmt.Sprintf("%d marked", v.Actions.Count))
		if v.Actions.UngroupEnabled {
			b.WriteString(" (U to ungroup)")
		}
		b.WriteString("\n")
	}
	switch m.mode {
	case modeFilter, modeRename, modeBulkRename, modeImport:
		b.WriteString("\n" + m.input.View() + "\n")
	case modeUngroup:
		b.WriteString("\nRemove custom names from:\n")
		for i, id := range m.candidates {
			box := "[ ]"
			if m.chosen[id] {
				box = "[x]"
			}
			line := box + " " + id
			if i == m.ungroupAt {
				line = CursorStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	case modeConfirmReset:
		b.WriteString("\n" + WarnStyle.Render("Reset every custom name? (y/n)") + "\n")
	}
	return PanelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderFooter(v viewer.View) string {
	var b strings.Builder
	for _, n := range m.notices {
		switch n.Level {
		case viewer.LevelError:
			b.WriteString(ErrorStyle.Render(n.Message))
		case viewer.LevelWarn:
			b.WriteString(WarnStyle.Render(n.Message))
		default:
			b.WriteString(n.Message)
		}
		b.WriteString("\n")
	}
	if m.query != "" && m.mode != modeFilter {
		b.WriteString(DimmedStyle.Render("filter: "+m.query) + "\n")
	}
	var help []string
	for _, k := range m.keys.help() {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(HelpStyle.Render(strings.Join(help, " • ")))
	if v.State == selection.StateGroupSelected {
		b.WriteString(HelpStyle.Render(" • x hide • esc close"))
	}
	return b.String()
}
