package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"myoview/internal/selection"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.SkinKeyword != "integumentary_system" || cfg.Palette != def.Palette || cfg.Pulse != def.Pulse {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Tag() != language.Und {
		t.Fatalf("tag = %v", cfg.Tag())
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	p := writeConfig(t, `
model: /data/body.glb
joints: false
locale: de
palette:
  highlight_color: "#00ff00"
  hover_color: 0x0000ff
pulse:
  enabled: true
  period: 2s
`)
	t.Setenv("MYOVIEW_JOINTS", "true")
	t.Setenv("MYOVIEW_MARKER_RADIUS", "0.05")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "/data/body.glb" || !cfg.Joints || cfg.MarkerRadius != 0.05 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Palette.HighlightColor != 0x00ff00 || cfg.Palette.HoverColor != 0x0000ff {
		t.Fatalf("palette = %+v", cfg.Palette)
	}
	if cfg.Palette.DefaultColor != selection.DefaultPalette().DefaultColor {
		t.Fatalf("unset palette fields keep defaults")
	}
	if !cfg.Pulse.Enabled || cfg.Pulse.Period != 2*time.Second || cfg.Pulse.Floor != 0.1 {
		t.Fatalf("pulse = %+v", cfg.Pulse)
	}
	if cfg.Tag() != language.German {
		t.Fatalf("tag = %v", cfg.Tag())
	}
	if opts := cfg.ModelOptions(); !opts.Joints || opts.SkinKeyword != "integumentary_system" {
		t.Fatalf("model options = %+v", opts)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"bad yaml":    "palette: [",
		"bad color":   "palette:\n  hover_color: \"#zzzzzz\"\n",
		"opacity":     "palette:\n  opacity: 1.5\n",
		"radius":      "marker_radius: -1\n",
		"empty skin":  "skin_keyword: \" \"\n",
		"pulse range": "pulse:\n  enabled: true\n  floor: 0.9\n  ceiling: 0.1\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	t.Setenv("MYOVIEW_JOINTS", "maybe")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "MYOVIEW_JOINTS") {
		t.Fatalf("expected env parse error, got %v", err)
	}
}

func TestPathHonoursEnv(t *testing.T) {
	t.Setenv("MYOVIEW_CONFIG", "/etc/myoview.yaml")
	if Path() != "/etc/myoview.yaml" {
		t.Fatalf("path = %s", Path())
	}
}
