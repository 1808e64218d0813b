package selection

import (
	"strings"
	"testing"
	"time"

	"myoview/internal/identity"
)

type fakeDirectory struct {
	names map[string]string
	order []string
}

func (d fakeDirectory) DisplayName(id string) string {
	if n, ok := d.names[id]; ok {
		return n
	}
	return id
}

func (d fakeDirectory) Members(name string) []string {
	var out []string
	for _, id := range d.order {
		if d.DisplayName(id) == name {
			out = append(out, id)
		}
	}
	return out
}

func (d fakeDirectory) HasCustomName(id string) bool {
	_, ok := d.names[id]
	return ok
}

func armFixture(t *testing.T) (*identity.Catalogue, fakeDirectory) {
	t.Helper()
	c := identity.MustNew(
		identity.Entity{ID: "m_bicep_l", Kind: identity.KindMuscle},
		identity.Entity{ID: "m_bicep_r", Kind: identity.KindMuscle},
		identity.Entity{ID: "m_tricep_l", Kind: identity.KindMuscle},
		identity.Entity{ID: "integumentary_system", Kind: identity.KindOther},
	)
	dir := fakeDirectory{
		names: map[string]string{"m_bicep_l": "Biceps", "m_bicep_r": "Biceps"},
		order: c.Addressable(),
	}
	return c, dir
}

// lastState folds commands into the final value per (target, op).
func lastState(cmds []Command) map[string]map[Op]Command {
	out := make(map[string]map[Op]Command)
	for _, c := range cmds {
		if out[c.Target] == nil {
			out[c.Target] = make(map[Op]Command)
		}
		out[c.Target][c.Op] = c
	}
	return out
}

func TestSelectGroupHighlightsAllMembers(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	fx := m.Click(dir, "m_bicep_r", true)
	if m.State() != StateGroupSelected {
		t.Fatalf("state = %v", m.State())
	}
	name, members := m.Active()
	if name != "Biceps" || len(members) != 2 {
		t.Fatalf("active = %q %v", name, members)
	}
	final := lastState(fx.Commands)
	for _, id := range []string{"m_bicep_l", "m_bicep_r"} {
		if got := final[id][OpColor].Color; got != 0xff4444 {
			t.Fatalf("%s color = %s", id, got)
		}
		if got := final[id][OpRenderOrder].Order; got != 999 {
			t.Fatalf("%s render order = %d", id, got)
		}
		if got := final[id][OpOpacity].Value; got != 1 {
			t.Fatalf("%s opacity = %v", id, got)
		}
	}
	if got := final["m_tricep_l"][OpOpacity].Value; got != 0.2 {
		t.Fatalf("non-member opacity = %v", got)
	}
	if final["m_tricep_l"][OpDepthWrite].Flag {
		t.Fatalf("dimmed meshes must not write depth")
	}
	if got := final["integumentary_system"][OpOpacity].Value; got != 0.05 {
		t.Fatalf("context mesh opacity = %v", got)
	}
	if fx.Panel == nil || fx.Panel.Title != "Biceps (2 meshes)" || fx.Panel.NameField != "Biceps" {
		t.Fatalf("panel = %+v", fx.Panel)
	}
	if m.VisualState("m_tricep_l") != VisualDimmed || m.VisualState("m_bicep_l") != VisualSelected {
		t.Fatalf("visual states wrong")
	}
}

func TestReselectClearsPreviousHighlight(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	m.SelectGroup(dir, "Biceps")
	fx := m.SelectGroup(dir, "m_tricep_l")
	final := lastState(fx.Commands)
	if got := final["m_bicep_l"][OpColor].Color; got != 0xcc8888 {
		t.Fatalf("old member must fall back to default color, got %s", got)
	}
	if got := final["m_bicep_l"][OpRenderOrder].Order; got != 0 {
		t.Fatalf("old member render order = %d", got)
	}
	if got := final["m_bicep_l"][OpOpacity].Value; got != 0.2 {
		t.Fatalf("old member now dimmed, got %v", got)
	}
	if fx.Panel.Title != "m_tricep_l" {
		t.Fatalf("singleton title = %q", fx.Panel.Title)
	}
}

func TestClickEmptySpaceReturnsToIdle(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	m.Move(dir, "m_tricep_l", true)
	m.SelectGroup(dir, "Biceps")
	fx := m.Click(dir, "", false)
	if m.State() != StateIdle || m.Hovered() != "" {
		t.Fatalf("expected idle with no hover, got %v hovered=%q", m.State(), m.Hovered())
	}
	if !fx.PanelClosed {
		t.Fatalf("panel must close")
	}
	if fx.Tooltip == nil || fx.Tooltip.Visible {
		t.Fatalf("tooltip must hide")
	}
	final := lastState(fx.Commands)
	for _, id := range c.Addressable() {
		if final[id][OpColor].Color != 0xcc8888 || final[id][OpOpacity].Value != 0.9 {
			t.Fatalf("%s not restored: %+v", id, final[id])
		}
	}
	if final["integumentary_system"][OpOpacity].Value != 0.3 {
		t.Fatalf("context mesh not restored")
	}
}

func TestHoverSuppressedOnActiveMembers(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	m.SelectGroup(dir, "Biceps")
	fx := m.Move(dir, "m_bicep_l", true)
	if len(fx.Commands) != 0 {
		t.Fatalf("hovering a highlighted member must not recolor it: %+v", fx.Commands)
	}
	if fx.Tooltip == nil || fx.Tooltip.Text != "Biceps" {
		t.Fatalf("tooltip = %+v", fx.Tooltip)
	}
	fx = m.Move(dir, "m_tricep_l", true)
	if len(fx.Commands) != 1 || fx.Commands[0].Color != 0xffaa44 || fx.Commands[0].Target != "m_tricep_l" {
		t.Fatalf("hover on non-member: %+v", fx.Commands)
	}
	fx = m.Move(dir, "", false)
	if len(fx.Commands) != 1 || fx.Commands[0].Color != 0xcc8888 {
		t.Fatalf("hover exit must restore default: %+v", fx.Commands)
	}
	if m.State() != StateGroupSelected {
		t.Fatalf("pointer miss must not drop selection")
	}
}

func TestHoverDoesNotEmitForSameTarget(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	m.Move(dir, "m_tricep_l", true)
	fx := m.Move(dir, "m_tricep_l", true)
	if len(fx.Commands) != 0 {
		t.Fatalf("repeated move re-emitted commands")
	}
	if m.State() != StateHovering || m.VisualState("m_tricep_l") != VisualHover {
		t.Fatalf("state = %v", m.State())
	}
}

func TestRefreshFollowsRebuiltIndex(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	m.SelectGroup(dir, "Biceps")
	delete(dir.names, "m_bicep_r")
	fx := m.Refresh(dir)
	if _, members := m.Active(); len(members) != 1 {
		t.Fatalf("refresh should shrink active group: %v", members)
	}
	if fx.Panel == nil || fx.Panel.Title != "Biceps" {
		t.Fatalf("panel = %+v", fx.Panel)
	}
	delete(dir.names, "m_bicep_l")
	fx = m.Refresh(dir)
	if !fx.PanelClosed || m.State() != StateIdle {
		t.Fatalf("vanished group must close panel")
	}
	if fx := m.Refresh(dir); len(fx.Commands) != 0 || fx.PanelClosed {
		t.Fatalf("refresh while idle is a no-op")
	}
}

func TestMultiSelectActions(t *testing.T) {
	c, dir := armFixture(t)
	m := New(c, DefaultPalette(), DefaultPulse())
	fx := m.ToggleMulti(dir, true, "m_tricep_l", "integumentary_system", "nope")
	if fx.Actions == nil || fx.Actions.Count != 1 || !fx.Actions.RenameEnabled || fx.Actions.UngroupEnabled {
		t.Fatalf("actions = %+v", fx.Actions)
	}
	fx = m.ToggleMulti(dir, true, "m_bicep_l", "m_bicep_r")
	if !fx.Actions.UngroupEnabled || fx.Actions.Count != 3 {
		t.Fatalf("custom-named member must enable ungroup: %+v", fx.Actions)
	}
	if got := m.UngroupCandidates(dir); len(got) != 2 || got[0] != "m_bicep_l" {
		t.Fatalf("candidates = %v", got)
	}
	m.ToggleMulti(dir, false, "m_bicep_l")
	if m.IsMultiSelected("m_bicep_l") || len(m.MultiSelected()) != 2 {
		t.Fatalf("toggle off failed: %v", m.MultiSelected())
	}
	m.SelectGroup(dir, "Biceps")
	m.Clear()
	if len(m.MultiSelected()) != 2 {
		t.Fatalf("clearing selection must keep accumulation")
	}
	fx = m.ClearMulti(dir)
	if fx.Actions.Count != 0 || fx.Actions.RenameEnabled {
		t.Fatalf("clear multi: %+v", fx.Actions)
	}
}

func TestPulseTouchesOnlyActiveMembers(t *testing.T) {
	c, dir := armFixture(t)
	pulse := Pulse{Enabled: true, Floor: 0.1, Ceiling: 0.5, Period: time.Second}
	m := New(c, DefaultPalette(), pulse)
	if cmds := m.Pulse(time.Now()); cmds != nil {
		t.Fatalf("idle pulse emitted %v", cmds)
	}
	m.SelectGroup(dir, "Biceps")
	cmds := m.Pulse(time.Unix(0, int64(250*time.Millisecond)))
	if len(cmds) != 2 {
		t.Fatalf("pulse should touch 2 members, got %d", len(cmds))
	}
	for _, cmd := range cmds {
		if cmd.Op != OpEmissiveIntensity || cmd.Value < 0.1 || cmd.Value > 0.5 {
			t.Fatalf("pulse out of bounds: %+v", cmd)
		}
	}
	if v := PulseIntensity(pulse, time.Unix(0, int64(250*time.Millisecond))); v < 0.499 {
		t.Fatalf("quarter period should peak, got %v", v)
	}
	off := New(c, DefaultPalette(), DefaultPulse())
	off.SelectGroup(dir, "Biceps")
	if off.Pulse(time.Now()) != nil {
		t.Fatalf("disabled pulse emitted")
	}
}

func TestSelectionChangeResetsPulseInstantly(t *testing.T) {
	c, dir := armFixture(t)
	pulse := Pulse{Enabled: true, Floor: 0.1, Ceiling: 0.5, Period: time.Second}
	m := New(c, DefaultPalette(), pulse)
	m.SelectGroup(dir, "Biceps")
	peak := m.Pulse(time.Unix(0, int64(250*time.Millisecond)))
	if len(peak) != 2 || peak[0].Value < 0.499 {
		t.Fatalf("pulse = %+v", peak)
	}

	fx := m.SelectGroup(dir, "m_tricep_l")
	final := lastState(fx.Commands)
	for _, id := range []string{"m_bicep_l", "m_bicep_r"} {
		if c, ok := final[id][OpEmissiveIntensity]; !ok || c.Value != 0 {
			t.Fatalf("%s emissive after reselect = %+v", id, c)
		}
	}
	for _, cmd := range m.Pulse(time.Unix(0, int64(250*time.Millisecond))) {
		if cmd.Target != "m_tricep_l" {
			t.Fatalf("pulse leaked to former member %q", cmd.Target)
		}
	}

	fx = m.Click(dir, "", false)
	if c := lastState(fx.Commands)["m_tricep_l"][OpEmissiveIntensity]; c.Value != 0 {
		t.Fatalf("emissive after clear = %v", c.Value)
	}
	if cmds := m.Pulse(time.Unix(0, int64(250*time.Millisecond))); cmds != nil {
		t.Fatalf("pulse after clear emitted %v", cmds)
	}
}

func TestSummarizeMembers(t *testing.T) {
	if got := SummarizeMembers([]string{"a", "b", "c"}); got != "a, b, c" {
		t.Fatalf("got %q", got)
	}
	got := SummarizeMembers([]string{"a", "b", "c", "d", "e"})
	if got != "a, b, c ... (+2 more)" {
		t.Fatalf("got %q", got)
	}
	if !strings.HasPrefix(Color(0xff4444).String(), "#ff4444") {
		t.Fatalf("color string")
	}
}
