package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/ktrzcinx/rtls-app/render"
	"github.com/ktrzcinx/rtls-app/viewport"
	"golang.org/x/image/colornames"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Surface  SurfaceConfig  `yaml:"surface"`
	Viewport ViewportConfig `yaml:"viewport"`
	Grid     GridConfig     `yaml:"grid"`
	Devices  DevicesConfig  `yaml:"devices"`
	Scenario ScenarioConfig `yaml:"scenario"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Loop     LoopConfig     `yaml:"loop"`
}

type SurfaceConfig struct {
	Width      int       `yaml:"width"`
	Height     int       `yaml:"height"`
	Background YAMLColor `yaml:"background"`
	Border     YAMLColor `yaml:"border"`
	FontSize   float64   `yaml:"font_size"`
}

type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type ViewportConfig struct {
	DefaultZoom   float64 `yaml:"default_zoom"`
	MinZoom       float64 `yaml:"min_zoom"`
	MaxZoom       float64 `yaml:"max_zoom"`
	ZoomStep      float64 `yaml:"zoom_step"`
	DefaultOffset *Point  `yaml:"default_offset"`
}

type GridConfig struct {
	Target float64   `yaml:"target"`
	Line   YAMLColor `yaml:"line"`
	Label  YAMLColor `yaml:"label"`
	Labels bool      `yaml:"labels"`
}

type DevicesConfig struct {
	Size        float64   `yaml:"size"`
	ApproxAlpha float64   `yaml:"approx_alpha"`
	ShowCoords  bool      `yaml:"show_coords"`
	IconBuckets int       `yaml:"icon_buckets"`
	Label       YAMLColor `yaml:"label"`
}

type ScenarioConfig struct {
	Script string `yaml:"script"`
	TickMs int    `yaml:"tick_ms"`
}

type HTTPConfig struct {
	// Addr is the listen address; empty disables the API.
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type LoopConfig struct {
	TPS                int  `yaml:"tps"`
	PauseWhenUnfocused bool `yaml:"pause_when_unfocused"`
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal default.yaml: %w", err)
	}
	return &cfg, nil
}

// Load reads the embedded defaults and overlays path on top when it is not
// empty. Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the viewport and renderer cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Surface.Width <= 0 || c.Surface.Height <= 0:
		return fmt.Errorf("%w: surface size %dx%d", ErrInvalid, c.Surface.Width, c.Surface.Height)
	case c.Surface.FontSize <= 0:
		return fmt.Errorf("%w: surface.font_size %v", ErrInvalid, c.Surface.FontSize)
	case c.Viewport.MinZoom <= 0:
		return fmt.Errorf("%w: viewport.min_zoom %v", ErrInvalid, c.Viewport.MinZoom)
	case c.Viewport.MaxZoom < c.Viewport.MinZoom:
		return fmt.Errorf("%w: viewport.max_zoom %v below min_zoom %v", ErrInvalid, c.Viewport.MaxZoom, c.Viewport.MinZoom)
	case c.Viewport.DefaultZoom <= 0:
		return fmt.Errorf("%w: viewport.default_zoom %v", ErrInvalid, c.Viewport.DefaultZoom)
	case c.Viewport.ZoomStep <= 1:
		return fmt.Errorf("%w: viewport.zoom_step %v must exceed 1", ErrInvalid, c.Viewport.ZoomStep)
	case c.Grid.Target <= 0:
		return fmt.Errorf("%w: grid.target %v", ErrInvalid, c.Grid.Target)
	case c.Devices.Size < 0:
		return fmt.Errorf("%w: devices.size %v", ErrInvalid, c.Devices.Size)
	case c.Devices.ApproxAlpha < 0 || c.Devices.ApproxAlpha > 1:
		return fmt.Errorf("%w: devices.approx_alpha %v outside [0, 1]", ErrInvalid, c.Devices.ApproxAlpha)
	case c.Devices.IconBuckets < 0:
		return fmt.Errorf("%w: devices.icon_buckets %d", ErrInvalid, c.Devices.IconBuckets)
	case c.Scenario.TickMs <= 0:
		return fmt.Errorf("%w: scenario.tick_ms %d", ErrInvalid, c.Scenario.TickMs)
	case c.Loop.TPS <= 0:
		return fmt.Errorf("%w: loop.tps %d", ErrInvalid, c.Loop.TPS)
	}
	return nil
}

// ViewportOptions converts the viewport section. The default offset puts the
// world origin in the bottom-left corner unless configured.
func (c *Config) ViewportOptions() viewport.Options {
	offset := viewport.ScreenPoint{X: 0, Y: float64(c.Surface.Height)}
	if p := c.Viewport.DefaultOffset; p != nil {
		offset = viewport.ScreenPoint{X: p.X, Y: p.Y}
	}
	return viewport.Options{
		DefaultZoom:   c.Viewport.DefaultZoom,
		DefaultOffset: offset,
		MinZoom:       c.Viewport.MinZoom,
		MaxZoom:       c.Viewport.MaxZoom,
		ZoomStep:      c.Viewport.ZoomStep,
	}
}

// Style converts the appearance settings for the renderer.
func (c *Config) Style() render.Style {
	st := render.DefaultStyle()
	st.Background = c.Surface.Background.Or(st.Background)
	st.Border = c.Surface.Border.Or(st.Border)
	st.GridLine = c.Grid.Line.Or(st.GridLine)
	st.GridLabel = c.Grid.Label.Or(st.GridLabel)
	st.DeviceLabel = c.Devices.Label.Or(st.DeviceLabel)
	st.GridTarget = c.Grid.Target
	st.GridLabels = c.Grid.Labels
	st.DeviceSize = c.Devices.Size
	st.ApproxAlpha = c.Devices.ApproxAlpha
	st.ShowCoords = c.Devices.ShowCoords
	st.LineHeight = c.Surface.FontSize + 2
	return st
}

// YAMLColor accepts "#rrggbb", "#rrggbbaa" or an SVG colour name.
type YAMLColor struct {
	color.Color
}

// Or returns the colour, or fallback when unset.
func (c YAMLColor) Or(fallback color.Color) color.Color {
	if c.Color == nil {
		return fallback
	}
	return c.Color
}

func (c *YAMLColor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("color must be a string")
	}

	if named, ok := colornames.Map[strings.ToLower(value.Value)]; ok {
		c.Color = named
		return nil
	}

	s := strings.TrimPrefix(value.Value, "#")
	if len(s) != 6 && len(s) != 8 {
		return fmt.Errorf("invalid color format: %s", value.Value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	r, err := parse(0)
	if err != nil {
		return err
	}
	g, err := parse(2)
	if err != nil {
		return err
	}
	b, err := parse(4)
	if err != nil {
		return err
	}

	a := uint8(255)
	if len(s) == 8 {
		a, err = parse(6)
		if err != nil {
			return err
		}
	}

	c.Color = color.NRGBA{R: r, G: g, B: b, A: a}
	return nil
}
