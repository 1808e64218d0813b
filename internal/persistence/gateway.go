// Package persistence moves the name mapping in and out of durable storage:
// the write-through snapshot, portable export archives and import parsing.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"myoview/internal/blob"
	"myoview/internal/naming"
)

// StorageKey is the bucket holding the mapping snapshot.
const StorageKey = "muscle_display_names"

const (
	exportPrefix = "muscle_name_mapping_"
	exportLayout = "2006-01-02_150405"
	contentType  = "application/json"
)

// MalformedInputError reports an import payload that is not a flat object of
// string values.
type MalformedInputError struct {
	Source string
	Reason string
}

func (e MalformedInputError) Error() string {
	if e.Source == "" {
		return "malformed mapping: " + e.Reason
	}
	return fmt.Sprintf("malformed mapping in %s: %s", e.Source, e.Reason)
}

// ErrNoArchive is returned by archive operations when no blob store is configured.
var ErrNoArchive = errors.New("no export archive configured")

// Logger is the structured logger accepted by the gateway.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Option configures a Gateway.
type Option func(*Gateway)

// WithArchive installs the blob store exports are written to.
func WithArchive(store blob.Store) Option { return func(g *Gateway) { g.archive = store } }

// WithArchivePrefix places exports under prefix inside the archive.
func WithArchivePrefix(prefix string) Option { return func(g *Gateway) { g.prefix = prefix } }

// WithLogger installs a logger.
func WithLogger(l Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock overrides the time source used for export names.
func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

// Gateway is the PersistenceGateway. It implements naming.Persister.
type Gateway struct {
	state    StateStore
	archive  blob.Store
	prefix   string
	logger   Logger
	now      func() time.Time
	degraded bool
	lastErr  error
}

var _ naming.Persister = (*Gateway)(nil)

// NewGateway wraps a state store. A nil store runs memory-only.
func NewGateway(state StateStore, opts ...Option) *Gateway {
	g := &Gateway{state: state, logger: noopLogger{}, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if state == nil {
		g.degraded = true
		g.lastErr = naming.StorageUnavailableError{Op: "open", Err: errors.New("no state store configured")}
	}
	return g
}

// Degraded reports whether durable storage has been given up for the session.
func (g *Gateway) Degraded() bool { return g.degraded }

// LastError returns the most recent storage or decode problem.
func (g *Gateway) LastError() error { return g.lastErr }

// Driver names the state backend, or "none".
func (g *Gateway) Driver() string {
	if g.state == nil {
		return "none"
	}
	return g.state.Driver()
}

// Load reads the persisted mapping. Unavailable storage degrades the gateway
// and malformed content is discarded; both yield an empty mapping.
func (g *Gateway) Load(ctx context.Context) naming.Mapping {
	if g.degraded {
		return naming.Mapping{}
	}
	payload, ok, err := g.state.Load(ctx, StorageKey)
	if err != nil {
		g.degrade("load", err)
		return naming.Mapping{}
	}
	if !ok {
		return naming.Mapping{}
	}
	m, err := ParseImport(payload)
	if err != nil {
		var malformed MalformedInputError
		if errors.As(err, &malformed) {
			malformed.Source = "durable store"
			err = malformed
		}
		g.lastErr = err
		g.logger.Warn("discarding unreadable stored mapping", "error", err)
		return naming.Mapping{}
	}
	g.logger.Info("loaded name mappings", "driver", g.state.Driver(), "mappings", len(m))
	return m
}

// Save writes the full snapshot.
func (g *Gateway) Save(ctx context.Context, m naming.Mapping) error {
	if g.degraded {
		return g.lastErr
	}
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	if err := g.state.Save(ctx, StorageKey, payload); err != nil {
		return g.degrade("save", err)
	}
	return nil
}

// Close releases the state store.
func (g *Gateway) Close() error {
	if g.state == nil {
		return nil
	}
	return g.state.Close()
}

func (g *Gateway) degrade(op string, err error) error {
	wrapped := naming.StorageUnavailableError{Op: op, Err: err}
	g.degraded = true
	g.lastErr = wrapped
	g.logger.Warn("durable storage unavailable, continuing in memory", "op", op, "error", err)
	return wrapped
}

// Encode renders a mapping as pretty-printed JSON with sorted keys.
func Encode(m naming.Mapping) ([]byte, error) {
	if m == nil {
		m = naming.Mapping{}
	}
	b, err := json.MarshalIndent(map[string]string(m), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode mapping: %w", err)
	}
	return append(b, '\n'), nil
}

// ParseImport validates raw as a flat JSON object of strings and returns it
// as a mapping. Nothing is returned for partially valid input.
func ParseImport(raw []byte) (naming.Mapping, error) {
	if !gjson.ValidBytes(raw) {
		return nil, MalformedInputError{Reason: "not valid JSON"}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, MalformedInputError{Reason: "top level must be an object"}
	}
	out := naming.Mapping{}
	var bad string
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			bad = key.String()
			return false
		}
		out[key.String()] = value.String()
		return true
	})
	if bad != "" {
		return nil, MalformedInputError{Reason: fmt.Sprintf("value for %q is not a string", bad)}
	}
	return out, nil
}

// ExportName returns the archive file name for an export taken at t.
func ExportName(t time.Time) string {
	return exportPrefix + t.Format(exportLayout) + ".json"
}

// ExportFile renders the export document and its suggested file name.
func (g *Gateway) ExportFile(m naming.Mapping) (string, []byte, error) {
	payload, err := Encode(m)
	if err != nil {
		return "", nil, err
	}
	return ExportName(g.now()), payload, nil
}

// Export writes the export document to the archive under a timestamped key.
// A key collision within the same second gets a numeric suffix.
func (g *Gateway) Export(ctx context.Context, m naming.Mapping) (blob.Info, error) {
	if g.archive == nil {
		return blob.Info{}, ErrNoArchive
	}
	name, payload, err := g.ExportFile(m)
	if err != nil {
		return blob.Info{}, err
	}
	base := strings.TrimSuffix(name, ".json")
	key := path.Join(g.prefix, name)
	for attempt := 2; ; attempt++ {
		info, err := g.archive.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"mappings": fmt.Sprint(len(m))},
		})
		if err == nil {
			g.logger.Info("exported name mappings", "key", info.Key, "driver", g.archive.Driver(), "mappings", len(m))
			return info, nil
		}
		if !errors.Is(err, blob.ErrExists) || attempt > 100 {
			return blob.Info{}, fmt.Errorf("write export: %w", err)
		}
		key = path.Join(g.prefix, fmt.Sprintf("%s-%d.json", base, attempt))
	}
}

// ListExports returns archived exports, oldest first by name.
func (g *Gateway) ListExports(ctx context.Context) ([]blob.Info, error) {
	if g.archive == nil {
		return nil, ErrNoArchive
	}
	prefix := exportPrefix
	if g.prefix != "" {
		prefix = strings.TrimSuffix(g.prefix, "/") + "/" + exportPrefix
	}
	return g.archive.List(ctx, prefix)
}

// FetchExport reads and parses an archived export.
func (g *Gateway) FetchExport(ctx context.Context, key string) (naming.Mapping, error) {
	if g.archive == nil {
		return nil, ErrNoArchive
	}
	_, rc, err := g.archive.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", key, err)
	}
	m, err := ParseImport(raw)
	if err != nil {
		var malformed MalformedInputError
		if errors.As(err, &malformed) {
			malformed.Source = key
			return nil, malformed
		}
		return nil, err
	}
	return m, nil
}

// ImportFile parses raw and merges it into store. Malformed input leaves the
// store untouched.
func ImportFile(ctx context.Context, raw []byte, store *naming.Store) (naming.ImportReport, error) {
	m, err := ParseImport(raw)
	if err != nil {
		return naming.ImportReport{}, err
	}
	return store.BulkImport(ctx, m), nil
}

// ReadImportFile loads an import document from disk.
func ReadImportFile(name string) ([]byte, error) {
	raw, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return raw, nil
}
