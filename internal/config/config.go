// Package config loads viewer settings from an optional YAML file with
// MYOVIEW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"myoview/internal/model"
	"myoview/internal/selection"
)

// Config holds the viewer settings.
type Config struct {
	Model        string            `yaml:"model"`
	SkinKeyword  string            `yaml:"skin_keyword"`
	Joints       bool              `yaml:"joints"`
	MarkerRadius float64           `yaml:"marker_radius"`
	Locale       string            `yaml:"locale"`
	ExportPrefix string            `yaml:"export_prefix"`
	Palette      selection.Palette `yaml:"palette"`
	Pulse        selection.Pulse   `yaml:"pulse"`
}

// Default returns the stock settings.
func Default() *Config {
	return &Config{
		Model:        "model.glb",
		SkinKeyword:  model.DefaultSkinKeyword,
		MarkerRadius: 0.02,
		Locale:       "und",
		ExportPrefix: "exports",
		Palette:      selection.DefaultPalette(),
		Pulse:        selection.DefaultPulse(),
	}
}

// Path returns MYOVIEW_CONFIG or the per-user config location.
func Path() string {
	if p := os.Getenv("MYOVIEW_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "myoview", "config.yaml")
}

// Load reads path over the defaults, then applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Model = expandPath(cfg.Model)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from MYOVIEW_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MYOVIEW_MODEL"); ok && v != "" {
		c.Model = v
	}
	if v, ok := lookup("MYOVIEW_SKIN_KEYWORD"); ok && v != "" {
		c.SkinKeyword = v
	}
	if v, ok := lookup("MYOVIEW_LOCALE"); ok && v != "" {
		c.Locale = v
	}
	if v, ok := lookup("MYOVIEW_EXPORT_PREFIX"); ok {
		c.ExportPrefix = v
	}
	if v, ok := lookup("MYOVIEW_JOINTS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MYOVIEW_JOINTS: %w", err)
		}
		c.Joints = b
	}
	if v, ok := lookup("MYOVIEW_PULSE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MYOVIEW_PULSE: %w", err)
		}
		c.Pulse.Enabled = b
	}
	if v, ok := lookup("MYOVIEW_MARKER_RADIUS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MYOVIEW_MARKER_RADIUS: %w", err)
		}
		c.MarkerRadius = f
	}
	return nil
}

// Validate rejects settings the viewer cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.SkinKeyword) == "" {
		problems = append(problems, "skin_keyword must not be empty")
	}
	if c.MarkerRadius <= 0 {
		problems = append(problems, "marker_radius must be positive")
	}
	if c.Pulse.Enabled && (c.Pulse.Period <= 0 || c.Pulse.Ceiling < c.Pulse.Floor) {
		problems = append(problems, "pulse needs a positive period and ceiling >= floor")
	}
	for name, v := range map[string]float64{
		"opacity":                c.Palette.Opacity,
		"dimmed_opacity":         c.Palette.DimmedOpacity,
		"other_opacity":          c.Palette.OtherOpacity,
		"other_selected_opacity": c.Palette.OtherSelectedOpacity,
	} {
		if v < 0 || v > 1 {
			problems = append(problems, fmt.Sprintf("palette.%s must be within [0,1]", name))
		}
	}
	if _, err := language.Parse(c.Locale); err != nil {
		problems = append(problems, fmt.Sprintf("locale %q: %v", c.Locale, err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Tag returns the collation locale.
func (c *Config) Tag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// ModelOptions returns the loader options.
func (c *Config) ModelOptions() model.Options {
	return model.Options{SkinKeyword: c.SkinKeyword, Joints: c.Joints}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
