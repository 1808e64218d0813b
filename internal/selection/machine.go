// Package selection implements the hover / active group / multi-select state
// machine. It is pure: every transition returns the renderer commands and UI
// updates it implies and never talks to a renderer itself.
package selection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"myoview/internal/identity"
)

// Directory resolves display names and group membership. It is backed by
// the name mapping store and a freshly rebuilt group index.
type Directory interface {
	DisplayName(id string) string
	Members(name string) []string
	HasCustomName(id string) bool
}

// Catalogue is the identity view the machine needs.
type Catalogue interface {
	Known(id string) bool
	Addressable() []string
	IDs(kind identity.Kind) []string
}

// State is the coarse interaction state.
type State int

const (
	StateIdle State = iota
	StateHovering
	StateGroupSelected
)

func (s State) String() string {
	switch s {
	case StateHovering:
		return "hovering"
	case StateGroupSelected:
		return "group_selected"
	default:
		return "idle"
	}
}

// VisualState is the derived per-entity look.
type VisualState int

const (
	VisualDefault VisualState = iota
	VisualHover
	VisualSelected
	VisualDimmed
)

// Panel is the detail panel content for the active group.
type Panel struct {
	DisplayName   string
	Title         string
	Members       []string
	MemberSummary string
	NameField     string
}

// Tooltip is the hover label.
type Tooltip struct {
	Text    string
	Visible bool
	Pointer bool
}

// Actions gates the bulk rename and ungroup controls.
type Actions struct {
	Count          int
	RenameEnabled  bool
	UngroupEnabled bool
}

// Effects is the output of a transition. Nil pointers mean "unchanged".
type Effects struct {
	Commands    []Command
	Panel       *Panel
	PanelClosed bool
	Tooltip     *Tooltip
	Actions     *Actions
}

const memberSummaryLimit = 3

// Machine is the SelectionStateMachine.
type Machine struct {
	palette     Palette
	pulse       Pulse
	catalogue   Catalogue
	addressable []string
	others      []string

	hovered    string
	activeName string
	active     []string
	activeSet  map[string]struct{}
	multi      map[string]struct{}
	multiOrder []string
}

// New constructs an idle machine.
func New(c Catalogue, palette Palette, pulse Pulse) *Machine {
	return &Machine{
		palette:     palette,
		pulse:       pulse,
		catalogue:   c,
		addressable: c.Addressable(),
		others:      c.IDs(identity.KindOther),
		activeSet:   make(map[string]struct{}),
		multi:       make(map[string]struct{}),
	}
}

// State returns the coarse state.
func (m *Machine) State() State {
	switch {
	case m.activeName != "":
		return StateGroupSelected
	case m.hovered != "":
		return StateHovering
	default:
		return StateIdle
	}
}

// Hovered returns the hovered entity id, or "".
func (m *Machine) Hovered() string { return m.hovered }

// Active returns the active display name and its members.
func (m *Machine) Active() (string, []string) {
	return m.activeName, append([]string(nil), m.active...)
}

// MultiSelected returns the accumulated entity ids in toggle order.
func (m *Machine) MultiSelected() []string { return append([]string(nil), m.multiOrder...) }

// IsMultiSelected reports whether id is accumulated.
func (m *Machine) IsMultiSelected(id string) bool {
	_, ok := m.multi[id]
	return ok
}

// VisualState derives the look of id from the current state.
func (m *Machine) VisualState(id string) VisualState {
	switch {
	case m.inActive(id):
		return VisualSelected
	case id == m.hovered:
		return VisualHover
	case m.activeName != "":
		return VisualDimmed
	default:
		return VisualDefault
	}
}

// Move handles a pointer move. A miss clears hover but never the selection.
func (m *Machine) Move(dir Directory, hit string, ok bool) Effects {
	if !ok {
		return m.clearHover()
	}
	var fx Effects
	if hit != m.hovered {
		if prev := m.hovered; prev != "" && !m.inActive(prev) {
			fx.Commands = append(fx.Commands, SetColor(prev, m.palette.DefaultColor))
		}
		m.hovered = hit
		if !m.inActive(hit) {
			fx.Commands = append(fx.Commands, SetColor(hit, m.palette.HoverColor))
		}
	}
	fx.Tooltip = &Tooltip{Text: dir.DisplayName(hit), Visible: true, Pointer: true}
	return fx
}

func (m *Machine) clearHover() Effects {
	var fx Effects
	if prev := m.hovered; prev != "" && !m.inActive(prev) {
		fx.Commands = append(fx.Commands, SetColor(prev, m.palette.DefaultColor))
	}
	m.hovered = ""
	fx.Tooltip = &Tooltip{}
	return fx
}

// Click handles a pointer click. Hitting an entity selects its group;
// clicking empty space returns to idle.
func (m *Machine) Click(dir Directory, hit string, ok bool) Effects {
	if !ok {
		return m.Clear()
	}
	return m.SelectGroup(dir, dir.DisplayName(hit))
}

// SelectGroup replaces the active group with the named one. Prior highlight
// is cleared before the new one is applied.
func (m *Machine) SelectGroup(dir Directory, name string) Effects {
	members := dir.Members(name)
	if len(members) == 0 {
		return m.Clear()
	}
	fx := Effects{Commands: m.resetAll()}
	m.activeName = name
	m.active = append([]string(nil), members...)
	m.activeSet = make(map[string]struct{}, len(members))
	for _, id := range members {
		m.activeSet[id] = struct{}{}
	}
	p := m.palette
	for _, id := range m.addressable {
		if m.inActive(id) {
			continue
		}
		fx.Commands = append(fx.Commands,
			SetOpacity(id, p.DimmedOpacity),
			SetDepthWrite(id, false),
		)
	}
	for _, id := range m.others {
		fx.Commands = append(fx.Commands, SetOpacity(id, p.OtherSelectedOpacity))
	}
	for _, id := range m.active {
		fx.Commands = append(fx.Commands,
			SetColor(id, p.HighlightColor),
			SetOpacity(id, 1),
			SetDepthWrite(id, true),
			SetRenderOrder(id, p.HighlightRenderOrder),
			SetEmissiveIntensity(id, p.HighlightEmissive),
		)
	}
	if m.hovered != "" && !m.inActive(m.hovered) {
		fx.Commands = append(fx.Commands, SetColor(m.hovered, p.HoverColor))
	}
	panel := newPanel(name, m.active)
	fx.Panel = &panel
	return fx
}

// Clear drops the active group and hover and restores default visuals. The
// multi-select accumulation is untouched.
func (m *Machine) Clear() Effects {
	fx := Effects{Commands: m.resetAll(), PanelClosed: true, Tooltip: &Tooltip{}}
	m.activeName = ""
	m.active = nil
	m.activeSet = make(map[string]struct{})
	m.hovered = ""
	return fx
}

// Refresh re-selects the active group after the index was rebuilt so member
// changes become visible. A group that no longer exists closes the panel.
func (m *Machine) Refresh(dir Directory) Effects {
	if m.activeName == "" {
		return Effects{}
	}
	return m.SelectGroup(dir, m.activeName)
}

// ToggleMulti adds or removes individual entities from the accumulation.
// Ids that are not addressable are ignored.
func (m *Machine) ToggleMulti(dir Directory, on bool, ids ...string) Effects {
	for _, id := range ids {
		if !m.catalogue.Known(id) {
			continue
		}
		_, present := m.multi[id]
		switch {
		case on && !present:
			m.multi[id] = struct{}{}
			m.multiOrder = append(m.multiOrder, id)
		case !on && present:
			delete(m.multi, id)
			m.multiOrder = removeID(m.multiOrder, id)
		}
	}
	a := m.Actions(dir)
	return Effects{Actions: &a}
}

// ClearMulti empties the accumulation.
func (m *Machine) ClearMulti(dir Directory) Effects {
	m.multi = make(map[string]struct{})
	m.multiOrder = nil
	a := m.Actions(dir)
	return Effects{Actions: &a}
}

// Actions reports which bulk controls are enabled.
func (m *Machine) Actions(dir Directory) Actions {
	a := Actions{Count: len(m.multiOrder), RenameEnabled: len(m.multiOrder) > 0}
	for _, id := range m.multiOrder {
		if dir.HasCustomName(id) {
			a.UngroupEnabled = true
			break
		}
	}
	return a
}

// UngroupCandidates lists accumulated ids that carry a custom name.
func (m *Machine) UngroupCandidates(dir Directory) []string {
	var out []string
	for _, id := range m.multiOrder {
		if dir.HasCustomName(id) {
			out = append(out, id)
		}
	}
	return out
}

// Pulse returns emissive commands for the active members at wall-clock time
// now. Cost is proportional to the active group only.
func (m *Machine) Pulse(now time.Time) []Command {
	if !m.pulse.Enabled || len(m.active) == 0 || m.pulse.Period <= 0 {
		return nil
	}
	v := PulseIntensity(m.pulse, now)
	out := make([]Command, 0, len(m.active))
	for _, id := range m.active {
		out = append(out, SetEmissiveIntensity(id, v))
	}
	return out
}

// PulseIntensity evaluates the oscillation between floor and ceiling.
func PulseIntensity(p Pulse, now time.Time) float64 {
	if p.Period <= 0 {
		return p.Floor
	}
	phase := float64(now.UnixNano()%int64(p.Period)) / float64(p.Period)
	return p.Floor + (p.Ceiling-p.Floor)*(0.5+0.5*math.Sin(2*math.Pi*phase))
}

func (m *Machine) resetAll() []Command {
	p := m.palette
	out := make([]Command, 0, len(m.addressable)*5+len(m.others))
	for _, id := range m.addressable {
		out = append(out,
			SetColor(id, p.DefaultColor),
			SetOpacity(id, p.Opacity),
			SetDepthWrite(id, true),
			SetRenderOrder(id, 0),
			SetEmissiveIntensity(id, 0),
		)
	}
	for _, id := range m.others {
		out = append(out, SetOpacity(id, p.OtherOpacity))
	}
	return out
}

func (m *Machine) inActive(id string) bool {
	_, ok := m.activeSet[id]
	return ok
}

func newPanel(name string, members []string) Panel {
	title := name
	if len(members) > 1 {
		title = fmt.Sprintf("%s (%d meshes)", name, len(members))
	}
	return Panel{
		DisplayName:   name,
		Title:         title,
		Members:       append([]string(nil), members...),
		MemberSummary: SummarizeMembers(members),
		NameField:     name,
	}
}

// SummarizeMembers joins up to three ids and elides the rest.
func SummarizeMembers(members []string) string {
	if len(members) <= memberSummaryLimit {
		return strings.Join(members, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(members[:memberSummaryLimit], ", "), len(members)-memberSummaryLimit)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
