package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const armModel = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0, 1, 2]}],
  "nodes": [
    {"name": "m_bicep_l", "mesh": 0, "translation": [-2, 0, 0]},
    {"name": "m_bicep_r", "mesh": 0, "translation": [2, 0, 0]},
    {"name": "integumentary_system", "mesh": 1, "translation": [0, 5, 0]}
  ],
  "meshes": [
    {"name": "cube", "primitives": [{"attributes": {"POSITION": 0}}]},
    {"name": "skin", "primitives": [{"attributes": {"POSITION": 0}}]}
  ],
  "accessors": [
    {"componentType": 5126, "count": 8, "type": "VEC3", "min": [-0.5, -0.5, -0.5], "max": [0.5, 0.5, 0.5]}
  ]
}`

// session isolates storage and settings for one test and returns the model
// path.
func session(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "arm.gltf")
	if err := os.WriteFile(modelPath, []byte(armModel), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	t.Setenv("MYOVIEW_CONFIG", filepath.Join(dir, "absent.yaml"))
	t.Setenv("MYOVIEW_STORAGE_DRIVER", "sqlite")
	t.Setenv("MYOVIEW_SQLITE_PATH", filepath.Join(dir, "names.db"))
	t.Setenv("MYOVIEW_BLOB_DRIVER", "fs")
	t.Setenv("MYOVIEW_BLOB_FS_ROOT", filepath.Join(dir, "archive"))
	return modelPath
}

func invoke(t *testing.T, modelPath string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"--model", modelPath}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func mustInvoke(t *testing.T, modelPath string, args ...string) string {
	t.Helper()
	code, out, errOut := invoke(t, modelPath, args...)
	if code != 0 {
		t.Fatalf("%v exited %d: %s", args, code, errOut)
	}
	return out
}

func TestNamesPersistAcrossRuns(t *testing.T) {
	m := session(t)
	mustInvoke(t, m, "assign", "Biceps", "m_bicep_l", "m_bicep_r")
	out := mustInvoke(t, m, "list", "--members")
	if !strings.Contains(out, "[G] Biceps (2 meshes)\tm_bicep_l,m_bicep_r") {
		t.Fatalf("list = %q", out)
	}
	mustInvoke(t, m, "rename", "Biceps", "Arm")
	if out := mustInvoke(t, m, "list"); !strings.Contains(out, "[G] Arm (2 meshes)") {
		t.Fatalf("list after rename = %q", out)
	}
	mustInvoke(t, m, "ungroup", "--ids", "m_bicep_r")
	out = mustInvoke(t, m, "list")
	if !strings.Contains(out, "Arm (m_bicep_l)") || !strings.Contains(out, "m_bicep_r") {
		t.Fatalf("list after ungroup = %q", out)
	}
	mustInvoke(t, m, "rename", "Arm", "")
	if out := mustInvoke(t, m, "list", "bicep"); out != "m_bicep_l\nm_bicep_r\n" {
		t.Fatalf("list after revert = %q", out)
	}
}

func TestExportResetRestore(t *testing.T) {
	m := session(t)
	mustInvoke(t, m, "assign", "Biceps", "m_bicep_l", "m_bicep_r")
	key := strings.TrimSpace(mustInvoke(t, m, "export"))
	if !strings.HasPrefix(key, "exports/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("export key = %q", key)
	}
	if out := mustInvoke(t, m, "exports"); !strings.Contains(out, key) {
		t.Fatalf("exports = %q", out)
	}
	if code, _, errOut := invoke(t, m, "reset"); code == 0 || !strings.Contains(errOut, "--yes") {
		t.Fatalf("reset without confirmation: %d %q", code, errOut)
	}
	if out := mustInvoke(t, m, "reset", "--yes"); out != "removed 2 names\n" {
		t.Fatalf("reset = %q", out)
	}
	mustInvoke(t, m, "restore", key)
	if out := mustInvoke(t, m, "list"); !strings.Contains(out, "[G] Biceps (2 meshes)") {
		t.Fatalf("list after restore = %q", out)
	}
	if out := mustInvoke(t, m, "export", "--stdout"); !strings.Contains(out, `"m_bicep_l": "Biceps"`) {
		t.Fatalf("export document = %q", out)
	}
}

func TestImportReportsSkippedEntries(t *testing.T) {
	m := session(t)
	p := filepath.Join(t.TempDir(), "names.json")
	if err := os.WriteFile(p, []byte(`{"m_bicep_l": "Left", "m_quad": "Quad"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, _, errOut := invoke(t, m, "import", p)
	if code != 0 || !strings.Contains(errOut, "skipped 1 unknown") {
		t.Fatalf("import: %d %q", code, errOut)
	}
	if err := os.WriteFile(p, []byte(`[1, 2]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if code, _, _ := invoke(t, m, "import", p); code == 0 {
		t.Fatalf("malformed import should fail")
	}
	if out := mustInvoke(t, m, "list"); !strings.Contains(out, "Left (m_bicep_l)") {
		t.Fatalf("malformed import must leave names untouched: %q", out)
	}
}

func TestProbeHitsFocusedMuscle(t *testing.T) {
	m := session(t)
	out := mustInvoke(t, m, "probe", "--width", "200", "--height", "100", "--focus", "m_bicep_l", "100", "50")
	if out != "m_bicep_l\tm_bicep_l\n" {
		t.Fatalf("probe = %q", out)
	}
	out = mustInvoke(t, m, "probe", "--width", "200", "--height", "100", "0", "0")
	if out != "nothing\n" {
		t.Fatalf("corner probe = %q", out)
	}
}

func TestRejectsBadFlags(t *testing.T) {
	m := session(t)
	if code, _, errOut := invoke(t, m, "--log-format", "xml", "list"); code == 0 || !strings.Contains(errOut, "log format") {
		t.Fatalf("log format: %d %q", code, errOut)
	}
	if code, _, errOut := invoke(t, m, "--metrics", "statsd", "list"); code == 0 || !strings.Contains(errOut, "metrics backend") {
		t.Fatalf("metrics: %d %q", code, errOut)
	}
	if code, _, _ := invoke(t, m, "rename", "Nobody", "X"); code == 0 {
		t.Fatalf("unknown group should fail")
	}
}

func TestMetricsAndTraceFlags(t *testing.T) {
	m := session(t)
	trace := filepath.Join(t.TempDir(), "trace.jsonl")
	mustInvoke(t, m, "--metrics", "prometheus", "--trace-file", trace, "assign", "Biceps", "m_bicep_l")
	raw, err := os.ReadFile(trace)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(raw), "bulk_rename") {
		t.Fatalf("trace = %q", raw)
	}
	mustInvoke(t, m, "--metrics", "expvar", "--log-format", "json", "list")
}
