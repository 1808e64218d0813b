// Package naming owns the original-id to display-name mapping and the group
// index derived from it.
package naming

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Mapping is a flat originalId -> displayName table. Absent keys resolve to
// the original id.
type Mapping map[string]string

// Clone returns an independent copy.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Catalogue is the subset of the identity catalogue naming depends on.
type Catalogue interface {
	Known(id string) bool
	Addressable() []string
}

// Persister receives the full mapping snapshot after every mutation.
type Persister interface {
	Save(ctx context.Context, m Mapping) error
}

// Logger is the structured logger accepted by the store.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// ImportReport summarizes a reconciliation against the catalogue.
type ImportReport struct {
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skipped_ids,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithPersister installs the write-through target.
func WithPersister(p Persister) Option { return func(s *Store) { s.persister = p } }

// WithLogger installs a logger.
func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is the NameMappingStore. It is the single source of truth for
// display names and is not safe for concurrent mutation; callers serialize.
type Store struct {
	catalogue Catalogue
	entries   map[string]string
	version   uint64
	persister Persister
	logger    Logger
	degraded  bool
	lastErr   error
}

// NewStore constructs an empty store bound to the catalogue.
func NewStore(catalogue Catalogue, opts ...Option) *Store {
	s := &Store{
		catalogue: catalogue,
		entries:   make(map[string]string),
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the display name for id, falling back to id itself.
func (s *Store) Get(id string) string {
	if name, ok := s.entries[id]; ok {
		return name
	}
	return id
}

// Custom returns the custom display name for id, if one is set.
func (s *Store) Custom(id string) (string, bool) {
	name, ok := s.entries[id]
	return name, ok
}

// Len returns the number of custom mappings.
func (s *Store) Len() int { return len(s.entries) }

// Version increments on every mutating call.
func (s *Store) Version() uint64 { return s.version }

// Degraded reports whether a persistence failure switched the store to
// memory-only mode.
func (s *Store) Degraded() bool { return s.degraded }

// PersistError returns the failure that degraded the store, if any.
func (s *Store) PersistError() error { return s.lastErr }

// Set assigns name to id. An empty or whitespace name removes the mapping.
func (s *Store) Set(ctx context.Context, id, name string) error {
	return s.SetMany(ctx, []string{id}, name)
}

// SetMany assigns the same name to every id as one mutation. All ids are
// validated before anything changes.
func (s *Store) SetMany(ctx context.Context, ids []string, name string) error {
	if err := s.checkKnown(ids); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	for _, id := range ids {
		s.assign(id, name)
	}
	s.commit(ctx)
	return nil
}

// Delete removes any custom mapping for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.DeleteMany(ctx, []string{id})
}

// DeleteMany removes custom mappings for every id as one mutation.
func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	if err := s.checkKnown(ids); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.entries, id)
	}
	s.commit(ctx)
	return nil
}

// BulkImport applies every entry whose key the catalogue knows and counts the
// rest as skipped. Existing mappings for keys not present are kept.
func (s *Store) BulkImport(ctx context.Context, m Mapping) ImportReport {
	report := s.apply(m)
	s.commit(ctx)
	return report
}

// Hydrate reconciles a previously persisted mapping without writing it back.
func (s *Store) Hydrate(m Mapping) ImportReport {
	report := s.apply(m)
	s.version++
	return report
}

// Export returns a snapshot of every custom mapping.
func (s *Store) Export() Mapping {
	return Mapping(s.entries).Clone()
}

// Clear removes every custom mapping and returns how many were removed.
func (s *Store) Clear(ctx context.Context) int {
	n := len(s.entries)
	s.entries = make(map[string]string)
	s.commit(ctx)
	return n
}

func (s *Store) apply(m Mapping) ImportReport {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var report ImportReport
	for _, id := range keys {
		if !s.catalogue.Known(id) {
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, id)
			continue
		}
		s.assign(id, strings.TrimSpace(m[id]))
		report.Imported++
	}
	return report
}

func (s *Store) assign(id, name string) {
	if name == "" {
		delete(s.entries, id)
		return
	}
	s.entries[id] = name
}

func (s *Store) checkKnown(ids []string) error {
	for _, id := range ids {
		if !s.catalogue.Known(id) {
			return fmt.Errorf("%w: %q", ErrUnknownEntity, id)
		}
	}
	return nil
}

func (s *Store) commit(ctx context.Context) {
	s.version++
	if s.persister == nil || s.degraded {
		return
	}
	if err := s.persister.Save(ctx, s.Export()); err != nil {
		s.degraded = true
		var unavailable StorageUnavailableError
		if !errors.As(err, &unavailable) {
			unavailable = StorageUnavailableError{Op: "save", Err: err}
		}
		s.lastErr = unavailable
		s.logger.Warn("name mapping persistence disabled for session", "error", err, "mappings", len(s.entries))
		return
	}
	s.logger.Info("saved name mappings", "mappings", len(s.entries))
}
