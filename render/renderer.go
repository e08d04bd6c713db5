package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/ktrzcinx/rtls-app/common"
	"github.com/ktrzcinx/rtls-app/viewport"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
	"golang.org/x/image/colornames"
)

// ErrNonFinitePosition marks a device whose position cannot be drawn.
var ErrNonFinitePosition = errors.New("render: non-finite position")

// PositionSource supplies device positions for a frame.
type PositionSource interface {
	AllDevicePositions(timestampMs int64) []zone.DevicePosition
}

// Style holds the appearance settings a frame is drawn with.
type Style struct {
	Background  color.Color
	Border      color.Color
	GridLine    color.Color
	GridLabel   color.Color
	DeviceLabel color.Color

	// GridTarget is roughly how many grid cells span the surface width.
	GridTarget float64
	GridLabels bool

	DeviceSize float64
	// ApproxAlpha is the opacity of devices pinned to the border.
	ApproxAlpha float64
	ShowCoords  bool
	LineHeight  float64
}

func DefaultStyle() Style {
	return Style{
		Background:  colornames.White,
		Border:      colornames.Black,
		GridLine:    colornames.Lightgray,
		GridLabel:   colornames.Gray,
		DeviceLabel: colornames.Black,
		GridTarget:  10,
		GridLabels:  true,
		DeviceSize:  10,
		ApproxAlpha: 0.4,
		ShowCoords:  false,
		LineHeight:  14,
	}
}

// FrameStats summarises one drawn frame.
type FrameStats struct {
	Grid    viewport.GridSpec
	Devices int
	Clamped int
	Skipped int
}

// Frame is the per-frame context handed to every pass.
type Frame struct {
	Surface   Surface
	View      viewport.State
	Timestamp int64
	Width     float64
	Height    float64
	Style     Style
	Stats     FrameStats

	transform viewport.Transform
}

// Renderer draws the device map. It keeps no viewport state of its own;
// every Draw call is a pure function of its arguments and the positions the
// source returns.
type Renderer struct {
	style    Style
	pipeline *Pipeline
}

func NewRenderer(style Style, icons *IconTable, source PositionSource, log zerolog.Logger) *Renderer {
	return &Renderer{
		style: style,
		pipeline: NewPipeline(
			clearPass{},
			gridPass{},
			borderPass{},
			&devicePass{icons: icons, source: source, log: log},
		),
	}
}

// Style returns the active style.
func (r *Renderer) Style() Style {
	return r.style
}

// SetStyle replaces the style used by subsequent frames.
func (r *Renderer) SetStyle(style Style) {
	r.style = style
}

// AddPass appends an overlay drawn after the devices on every frame.
func (r *Renderer) AddPass(p Pass) {
	r.pipeline.Add(p)
}

// Draw renders one frame onto s for the given view at timestampMs.
func (r *Renderer) Draw(s Surface, view viewport.State, timestampMs int64) FrameStats {
	w, h := s.Size()
	f := &Frame{
		Surface:   s,
		View:      view,
		Timestamp: timestampMs,
		Width:     w,
		Height:    h,
		Style:     r.style,
		transform: view.Transform(),
	}
	if w <= 0 || h <= 0 {
		return f.Stats
	}
	r.pipeline.Draw(f)
	return f.Stats
}

type clearPass struct{}

func (clearPass) Draw(f *Frame) {
	f.Surface.Clear(f.Style.Background)
}

type gridPass struct{}

func (gridPass) Draw(f *Frame) {
	st := f.Style
	zoom := f.View.Zoom
	if !(zoom > 0) || !(st.GridTarget > 0) {
		return
	}
	spec := viewport.ResolveSpacing(f.Width, zoom, st.GridTarget)
	f.Stats.Grid = spec

	s := f.Surface
	s.Save()
	defer s.Restore()
	s.SetStrokeColor(st.GridLine)
	s.SetFillColor(st.GridLabel)

	off := f.View.Offset
	for _, x := range spec.Lines(off.X, zoom, f.Width) {
		s.Line(x, 0, x, f.Height, 1)
		if st.GridLabels {
			v := f.transform.ToWorld(viewport.ScreenPoint{X: x}).X
			s.Text(spec.Label(snap(v, spec.RealSpacing)), x+2, f.Height-4)
		}
	}
	for _, y := range spec.Lines(off.Y, zoom, f.Height) {
		s.Line(0, y, f.Width, y, 1)
		if st.GridLabels {
			v := f.transform.ToWorld(viewport.ScreenPoint{Y: y}).Y
			s.Text(spec.Label(snap(v, spec.RealSpacing)), 2, y-2)
		}
	}
}

// snap removes float noise from a value that should be a multiple of step.
func snap(v, step float64) float64 {
	return math.Round(v/step) * step
}

type borderPass struct{}

func (borderPass) Draw(f *Frame) {
	s := f.Surface
	s.Save()
	defer s.Restore()
	s.SetStrokeColor(f.Style.Border)
	s.StrokeRect(0, 0, f.Width, f.Height, 2)
}

type devicePass struct {
	icons  *IconTable
	source PositionSource
	log    zerolog.Logger
}

func (p *devicePass) Draw(f *Frame) {
	if p.source == nil {
		return
	}
	clamp := viewport.BorderClamp{Width: f.Width, Height: f.Height}
	margin := f.Style.DeviceSize / 2

	for _, d := range p.source.AllDevicePositions(f.Timestamp) {
		f.Stats.Devices++
		exact, err := p.drawDevice(f, clamp, margin, d)
		if err != nil {
			f.Stats.Skipped++
			p.log.Debug().Err(err).Int("device", d.ID).Msg("device skipped")
			continue
		}
		if !exact {
			f.Stats.Clamped++
		}
	}
}

// drawDevice draws one device. A panic inside the surface is turned into an
// error so the rest of the frame still renders.
func (p *devicePass) drawDevice(f *Frame, clamp viewport.BorderClamp, margin float64, d zone.DevicePosition) (exact bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: device %d: %v", d.ID, r)
		}
	}()

	world := viewport.WorldPoint{X: d.Pos.Cord[0], Y: d.Pos.Cord[1]}
	screen := f.transform.ToScreen(world)
	if !common.Finite(world.X, world.Y, screen.X, screen.Y) {
		return false, fmt.Errorf("%w: device %d", ErrNonFinitePosition, d.ID)
	}
	res := clamp.Clamp(screen, margin)

	st := f.Style
	s := f.Surface
	s.Save()
	defer s.Restore()

	if res.Exact {
		s.SetAlpha(1)
	} else {
		s.SetAlpha(st.ApproxAlpha)
	}

	size := st.DeviceSize
	s.Image(p.icons.For(d.ID), res.Pos.X-size/2, res.Pos.Y-size/2, size, size)

	s.SetFillColor(st.DeviceLabel)
	labelX := res.Pos.X + size/2 + 2
	s.Text(strconv.Itoa(d.ID), labelX, res.Pos.Y)
	if st.ShowCoords {
		s.Text(fmt.Sprintf("(%.1f, %.1f)", world.X, world.Y), labelX, res.Pos.Y+st.LineHeight)
	}
	return res.Exact, nil
}
