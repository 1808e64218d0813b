// Package viewer is the dispatch layer between UI adapters and the naming,
// selection and persistence packages. Every intent runs to completion under
// one lock, so adapters may call it from any goroutine.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"myoview/internal/blob"
	"myoview/internal/identity"
	"myoview/internal/naming"
	"myoview/internal/persistence"
	"myoview/internal/picking"
	"myoview/internal/selection"
)

// ErrNoSelection is returned by intents that need an active group or a
// non-empty multi-selection.
var ErrNoSelection = errors.New("nothing selected")

// Renderer is the visual side the service drives.
type Renderer interface {
	Apply(cmds []selection.Command)
	Visible(id string) bool
	FitView(ids []string) error
}

// Level grades a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a user-facing message produced by an intent.
type Notice struct {
	Level   Level
	Message string
}

// View is a snapshot of everything a UI adapter renders outside the scene.
type View struct {
	State      selection.State
	Hovered    string
	ActiveName string
	Members    []string
	Panel      *selection.Panel
	Tooltip    selection.Tooltip
	Actions    selection.Actions
	Multi      []string
	Degraded   bool
	Driver     string
}

// Service is the viewer application service.
type Service struct {
	mu sync.Mutex

	catalogue *identity.Catalogue
	renderer  Renderer
	gateway   *persistence.Gateway
	store     *naming.Store
	index     *naming.Index
	machine   *selection.Machine
	resolver  *picking.Resolver
	collator  *collate.Collator

	palette selection.Palette
	pulse   selection.Pulse
	locale  language.Tag

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock

	panel    *selection.Panel
	tooltip  selection.Tooltip
	actions  selection.Actions
	notices  []Notice
	warnedDB bool
}

// New wires a service over the catalogue and renderer. Call Start before
// dispatching intents so persisted names are loaded.
func New(cat *identity.Catalogue, renderer Renderer, opts ...Option) *Service {
	s := &Service{
		catalogue: cat,
		renderer:  renderer,
		palette:   selection.DefaultPalette(),
		pulse:     selection.DefaultPulse(),
		locale:    language.Und,
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		clock:     ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(s)
	}
	storeOpts := []naming.Option{naming.WithLogger(s.logger)}
	if s.gateway != nil {
		storeOpts = append(storeOpts, naming.WithPersister(s.gateway))
	}
	s.store = naming.NewStore(cat, storeOpts...)
	s.index = naming.Rebuild(cat, s.store)
	s.machine = selection.New(cat, s.palette, s.pulse)
	s.resolver = picking.NewResolver(cat, renderer)
	s.collator = collate.New(s.locale, collate.IgnoreCase)
	return s
}

// Start hydrates the store from durable storage.
func (s *Service) Start(ctx context.Context) naming.ImportReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report naming.ImportReport
	_ = s.run(ctx, "load", func(ctx context.Context) error {
		if s.gateway == nil {
			return nil
		}
		report = s.store.Hydrate(s.gateway.Load(ctx))
		var malformed persistence.MalformedInputError
		if err := s.gateway.LastError(); errors.As(err, &malformed) {
			s.notify(LevelWarn, "Stored names were unreadable and have been discarded.")
		}
		return nil
	})
	s.checkStorage()
	if report.Skipped > 0 {
		s.notify(LevelWarn, fmt.Sprintf("%d stored names do not match this model and were skipped.", report.Skipped))
	}
	s.index = naming.Rebuild(s.catalogue, s.store)
	s.logger.Info("viewer started", "entities", s.catalogue.Len(), "mappings", s.store.Len(), "groups", s.index.Len())
	return report
}

// Close releases durable storage.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gateway == nil {
		return nil
	}
	return s.gateway.Close()
}

// View returns the current UI snapshot.
func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, members := s.machine.Active()
	v := View{
		State:      s.machine.State(),
		Hovered:    s.machine.Hovered(),
		ActiveName: name,
		Members:    members,
		Tooltip:    s.tooltip,
		Actions:    s.actions,
		Multi:      s.machine.MultiSelected(),
		Degraded:   s.store.Degraded() || (s.gateway != nil && s.gateway.Degraded()),
		Driver:     "none",
	}
	if s.gateway != nil {
		v.Driver = s.gateway.Driver()
	}
	if s.panel != nil {
		p := *s.panel
		v.Panel = &p
	}
	return v
}

// Notices drains pending notices.
func (s *Service) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// Report queues the error notice an intent would produce for err, for
// adapters that reject a request before dispatching it.
func (s *Service) Report(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify(LevelError, describe(err))
}

// DisplayName resolves id through the mapping.
func (s *Service) DisplayName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(id)
}

// Mapping returns a snapshot of every custom name.
func (s *Service) Mapping() naming.Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Export()
}

// PointerMove resolves a hover pick and returns the tooltip to show.
func (s *Service) PointerMove(q picking.Query) selection.Tooltip {
	s.mu.Lock()
	defer s.mu.Unlock()
	hit, ok := s.resolver.Resolve(q)
	s.apply(s.machine.Move(s.dir(), hit.ID, ok))
	return s.tooltip
}

// PointerClick selects the group under the pointer, or clears the selection
// when nothing addressable was hit. It returns the resolved entity id.
func (s *Service) PointerClick(q picking.Query) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hit, ok := s.resolver.Resolve(q)
	s.apply(s.machine.Click(s.dir(), hit.ID, ok))
	return hit.ID, ok
}

// SelectGroup activates the named group. It reports false when no entity
// resolves to name.
func (s *Service) SelectGroup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.machine.SelectGroup(s.dir(), name))
	return s.panel != nil
}

// CloseSelection returns to idle.
func (s *Service) CloseSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.machine.Clear())
}

// ToggleMulti adds or removes entities from the multi-selection.
func (s *Service) ToggleMulti(on bool, ids ...string) selection.Actions {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.machine.ToggleMulti(s.dir(), on, ids...))
	return s.actions
}

// ToggleGroupMulti adds or removes every member of a group.
func (s *Service) ToggleGroupMulti(name string, on bool) selection.Actions {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dir()
	s.apply(s.machine.ToggleMulti(dir, on, dir.Members(name)...))
	return s.actions
}

// ClearMulti empties the multi-selection.
func (s *Service) ClearMulti() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(s.machine.ClearMulti(s.dir()))
}

// RenameActive renames every member of the active group. An empty name
// removes their custom names and closes the panel; otherwise the selection
// follows the group to its new name.
func (s *Service) RenameActive(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, members := s.machine.Active()
	if active == "" {
		return s.fail(ErrNoSelection)
	}
	name = strings.TrimSpace(name)
	err := s.run(ctx, "rename", func(ctx context.Context) error {
		if name == "" {
			return s.store.DeleteMany(ctx, members)
		}
		return s.store.SetMany(ctx, members, name)
	})
	if err != nil {
		return s.fail(err)
	}
	s.checkStorage()
	dir := s.dir()
	if name == "" {
		s.apply(s.machine.Clear())
		s.notify(LevelInfo, fmt.Sprintf("Restored original names for %d meshes.", len(members)))
	} else {
		s.apply(s.machine.SelectGroup(dir, name))
		s.notify(LevelInfo, fmt.Sprintf("Renamed %d meshes to %q.", len(members), name))
	}
	s.refreshActions(dir)
	return nil
}

// BulkRename assigns one name to every multi-selected entity and clears
// the multi-selection.
func (s *Service) BulkRename(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.machine.MultiSelected()
	if len(ids) == 0 {
		return s.fail(ErrNoSelection)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return s.fail(naming.ErrEmptyName)
	}
	if err := s.run(ctx, "bulk_rename", func(ctx context.Context) error {
		return s.store.SetMany(ctx, ids, name)
	}); err != nil {
		return s.fail(err)
	}
	s.checkStorage()
	dir := s.dir()
	s.apply(s.machine.ClearMulti(dir))
	s.apply(s.machine.Refresh(dir))
	s.notify(LevelInfo, fmt.Sprintf("Renamed %d meshes to %q.", len(ids), name))
	return nil
}

// UngroupActive strips custom names from the active members and closes the
// panel.
func (s *Service) UngroupActive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, members := s.machine.Active()
	if active == "" {
		return s.fail(ErrNoSelection)
	}
	targets := s.customOnly(members)
	if len(targets) == 0 {
		return s.fail(naming.ErrNothingToUngroup)
	}
	if err := s.run(ctx, "ungroup", func(ctx context.Context) error {
		return s.store.DeleteMany(ctx, targets)
	}); err != nil {
		return s.fail(err)
	}
	s.checkStorage()
	s.apply(s.machine.Clear())
	s.refreshActions(s.dir())
	s.notify(LevelInfo, fmt.Sprintf("Ungrouped %d meshes.", len(targets)))
	return nil
}

// UngroupCandidates lists multi-selected entities that carry a custom name.
func (s *Service) UngroupCandidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.UngroupCandidates(s.dir())
}

// Ungroup strips custom names from the chosen multi-selected entities. With
// no ids every candidate is ungrouped.
func (s *Service) Ungroup(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := s.machine.UngroupCandidates(s.dir())
	targets := candidates
	if len(ids) > 0 {
		allowed := make(map[string]bool, len(candidates))
		for _, id := range candidates {
			allowed[id] = true
		}
		targets = nil
		for _, id := range ids {
			if allowed[id] {
				targets = append(targets, id)
			}
		}
	}
	if len(targets) == 0 {
		return s.fail(naming.ErrNothingToUngroup)
	}
	if err := s.run(ctx, "ungroup", func(ctx context.Context) error {
		return s.store.DeleteMany(ctx, targets)
	}); err != nil {
		return s.fail(err)
	}
	s.checkStorage()
	dir := s.dir()
	s.apply(s.machine.ToggleMulti(dir, false, targets...))
	s.apply(s.machine.Refresh(dir))
	s.notify(LevelInfo, fmt.Sprintf("Ungrouped %d meshes.", len(targets)))
	return nil
}

// ResetAll removes every custom name and returns how many were removed.
func (s *Service) ResetAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	_ = s.run(ctx, "reset", func(ctx context.Context) error {
		n = s.store.Clear(ctx)
		return nil
	})
	s.checkStorage()
	dir := s.dir()
	s.apply(s.machine.Clear())
	s.refreshActions(dir)
	s.notify(LevelInfo, fmt.Sprintf("Reset %d names.", n))
	return n
}

// Import applies a raw mapping file. Malformed input changes nothing. A
// successful import closes the selection.
func (s *Service) Import(ctx context.Context, raw []byte) (naming.ImportReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var report naming.ImportReport
	err := s.run(ctx, "import", func(ctx context.Context) error {
		var err error
		report, err = persistence.ImportFile(ctx, raw, s.store)
		return err
	})
	if err != nil {
		return report, s.fail(err)
	}
	s.checkStorage()
	dir := s.dir()
	s.apply(s.machine.Clear())
	s.refreshActions(dir)
	msg := fmt.Sprintf("Imported %d names.", report.Imported)
	if report.Skipped > 0 {
		msg = fmt.Sprintf("Imported %d names, skipped %d unknown meshes.", report.Imported, report.Skipped)
	}
	s.notify(LevelInfo, msg)
	return report, nil
}

// Export writes the mapping to the export archive.
func (s *Service) Export(ctx context.Context) (blob.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gateway == nil {
		return blob.Info{}, s.fail(persistence.ErrNoArchive)
	}
	var info blob.Info
	err := s.run(ctx, "export", func(ctx context.Context) error {
		var err error
		info, err = s.gateway.Export(ctx, s.store.Export())
		return err
	})
	if err != nil {
		return info, s.fail(err)
	}
	s.notify(LevelInfo, fmt.Sprintf("Exported %d names to %s.", s.store.Len(), info.Key))
	return info, nil
}

// ExportFile renders the mapping as a download with a timestamped name.
func (s *Service) ExportFile() (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := persistence.Encode(s.store.Export())
	if err != nil {
		return "", nil, err
	}
	return persistence.ExportName(s.clock.Now()), payload, nil
}

// Frame advances time-based effects.
func (s *Service) Frame(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmds := s.machine.Pulse(now); len(cmds) > 0 {
		s.renderer.Apply(cmds)
	}
}

// FocusActive fits the view to the active group.
func (s *Service) FocusActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, members := s.machine.Active()
	if active == "" {
		return s.fail(ErrNoSelection)
	}
	if err := s.renderer.FitView(members); err != nil {
		return s.fail(err)
	}
	return nil
}

// HideActive hides the active members and closes the panel.
func (s *Service) HideActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, members := s.machine.Active()
	if active == "" {
		return s.fail(ErrNoSelection)
	}
	s.setVisible(members, false)
	s.apply(s.machine.Clear())
	return nil
}

// ToggleGroupVisibility hides the group when every member is visible and
// shows it otherwise. It returns the new visibility.
func (s *Service) ToggleGroupVisibility(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.dir().Members(name)
	visible := !s.allVisible(members)
	s.setVisible(members, visible)
	return visible
}

// ShowAll makes every entity visible.
func (s *Service) ShowAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.catalogue.Entities() {
		ids = append(ids, e.ID)
	}
	s.setVisible(ids, true)
}

// HideAll hides every addressable entity. Context meshes stay.
func (s *Service) HideAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setVisible(s.catalogue.Addressable(), false)
}

func (s *Service) setVisible(ids []string, visible bool) {
	cmds := make([]selection.Command, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, selection.SetVisible(id, visible))
	}
	s.renderer.Apply(cmds)
}

func (s *Service) allVisible(ids []string) bool {
	for _, id := range ids {
		if !s.renderer.Visible(id) {
			return false
		}
	}
	return len(ids) > 0
}

func (s *Service) customOnly(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := s.store.Custom(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// dir returns the directory over the store, rebuilding the group index when
// the store changed since it was built.
func (s *Service) dir() directory {
	if s.index == nil || s.index.Stale(s.store) {
		s.index = naming.Rebuild(s.catalogue, s.store)
	}
	return directory{store: s.store, index: s.index}
}

func (s *Service) apply(fx selection.Effects) {
	if len(fx.Commands) > 0 {
		s.renderer.Apply(fx.Commands)
	}
	if fx.PanelClosed {
		s.panel = nil
	}
	if fx.Panel != nil {
		p := *fx.Panel
		s.panel = &p
	}
	if fx.Tooltip != nil {
		s.tooltip = *fx.Tooltip
	}
	if fx.Actions != nil {
		s.actions = *fx.Actions
	}
}

func (s *Service) refreshActions(dir directory) {
	s.actions = s.machine.Actions(dir)
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)
	if err != nil {
		s.logger.Warn("viewer operation failed", "operation", op, "error", err)
		return err
	}
	s.logger.Debug("viewer operation", "operation", op, "mappings", s.store.Len())
	return nil
}

func (s *Service) checkStorage() {
	if s.warnedDB {
		return
	}
	var err error
	switch {
	case s.store.Degraded():
		err = s.store.PersistError()
	case s.gateway != nil && s.gateway.Degraded():
		err = s.gateway.LastError()
	default:
		return
	}
	s.warnedDB = true
	s.logger.Error("durable storage unavailable", "error", err)
	s.notify(LevelWarn, "Names will not be saved after this session. Export them to keep your changes.")
}

func (s *Service) notify(level Level, msg string) {
	s.notices = append(s.notices, Notice{Level: level, Message: msg})
}

func (s *Service) fail(err error) error {
	s.notify(LevelError, describe(err))
	return err
}

func describe(err error) string {
	var malformed persistence.MalformedInputError
	switch {
	case errors.Is(err, naming.ErrEmptyName):
		return "Please enter a name."
	case errors.Is(err, naming.ErrNothingToUngroup):
		return "None of the selected meshes has a custom name."
	case errors.Is(err, ErrNoSelection):
		return "Select something first."
	case errors.Is(err, persistence.ErrNoArchive):
		return "No export location is configured."
	case errors.As(err, &malformed):
		return "Invalid mapping file: " + malformed.Reason
	default:
		return err.Error()
	}
}

type directory struct {
	store *naming.Store
	index *naming.Index
}

func (d directory) DisplayName(id string) string { return d.store.Get(id) }

func (d directory) Members(name string) []string { return d.index.Members(name) }

func (d directory) HasCustomName(id string) bool {
	_, ok := d.store.Custom(id)
	return ok
}
