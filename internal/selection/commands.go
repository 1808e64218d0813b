package selection

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Color is a 24-bit RGB value.
type Color uint32

func (c Color) String() string { return fmt.Sprintf("#%06x", uint32(c)) }

// ParseColor accepts "#rrggbb", "0xrrggbb" or bare hex.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || v > 0xffffff {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	return Color(v), nil
}

// UnmarshalYAML reads a color written as a hex string or an integer.
func (c *Color) UnmarshalYAML(n *yaml.Node) error {
	if n.ShortTag() == "!!int" {
		var v uint32
		if err := n.Decode(&v); err != nil {
			return err
		}
		*c = Color(v)
		return nil
	}
	parsed, err := ParseColor(n.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML writes the "#rrggbb" form.
func (c Color) MarshalYAML() (any, error) { return c.String(), nil }

// Op names a visual property the renderer exposes.
type Op int

const (
	OpColor Op = iota
	OpOpacity
	OpEmissiveIntensity
	OpRenderOrder
	OpVisible
	OpDepthWrite
)

func (o Op) String() string {
	switch o {
	case OpColor:
		return "color"
	case OpOpacity:
		return "opacity"
	case OpEmissiveIntensity:
		return "emissive"
	case OpRenderOrder:
		return "render_order"
	case OpVisible:
		return "visible"
	case OpDepthWrite:
		return "depth_write"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Command is a single "set visual state of entity" instruction for the
// renderer. Only the field matching Op is meaningful.
type Command struct {
	Op     Op
	Target string
	Color  Color
	Value  float64
	Order  int
	Flag   bool
}

func SetColor(id string, c Color) Command { return Command{Op: OpColor, Target: id, Color: c} }
func SetOpacity(id string, v float64) Command {
	return Command{Op: OpOpacity, Target: id, Value: v}
}
func SetEmissiveIntensity(id string, v float64) Command {
	return Command{Op: OpEmissiveIntensity, Target: id, Value: v}
}
func SetRenderOrder(id string, order int) Command {
	return Command{Op: OpRenderOrder, Target: id, Order: order}
}
func SetVisible(id string, visible bool) Command {
	return Command{Op: OpVisible, Target: id, Flag: visible}
}
func SetDepthWrite(id string, on bool) Command {
	return Command{Op: OpDepthWrite, Target: id, Flag: on}
}

// Palette holds the material values used for each visual state.
type Palette struct {
	DefaultColor         Color   `yaml:"default_color"`
	HighlightColor       Color   `yaml:"highlight_color"`
	HoverColor           Color   `yaml:"hover_color"`
	OtherColor           Color   `yaml:"other_color"`
	Opacity              float64 `yaml:"opacity"`
	DimmedOpacity        float64 `yaml:"dimmed_opacity"`
	OtherOpacity         float64 `yaml:"other_opacity"`
	OtherSelectedOpacity float64 `yaml:"other_selected_opacity"`
	HighlightEmissive    float64 `yaml:"highlight_emissive"`
	HighlightRenderOrder int     `yaml:"highlight_render_order"`
}

// DefaultPalette mirrors the stock muscle viewer colors.
func DefaultPalette() Palette {
	return Palette{
		DefaultColor:         0xcc8888,
		HighlightColor:       0xff4444,
		HoverColor:           0xffaa44,
		OtherColor:           0xdddddd,
		Opacity:              0.9,
		DimmedOpacity:        0.2,
		OtherOpacity:         0.3,
		OtherSelectedOpacity: 0.05,
		HighlightEmissive:    0.2,
		HighlightRenderOrder: 999,
	}
}

// Pulse configures the optional emissive oscillation of the active group.
type Pulse struct {
	Enabled bool          `yaml:"enabled"`
	Floor   float64       `yaml:"floor"`
	Ceiling float64       `yaml:"ceiling"`
	Period  time.Duration `yaml:"period"`
}

// DefaultPulse returns a disabled pulse with usable bounds.
func DefaultPulse() Pulse {
	return Pulse{Floor: 0.1, Ceiling: 0.6, Period: 1500 * time.Millisecond}
}
