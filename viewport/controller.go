package viewport

import (
	"math"

	"github.com/ktrzcinx/rtls-app/common"
)

// State is the mutable camera state. Only Controller writes it; everyone
// else gets a copy.
type State struct {
	Zoom    float64
	Offset  ScreenPoint
	Panning bool
}

// Transform returns the world/screen mapping for this state.
func (s State) Transform() Transform {
	return Transform{Zoom: s.Zoom, Offset: s.Offset}
}

// Options configures a Controller.
type Options struct {
	DefaultZoom   float64
	DefaultOffset ScreenPoint
	MinZoom       float64
	MaxZoom       float64
	// ZoomStep is the zoom multiplier applied per unit of wheel delta.
	ZoomStep float64
}

// DefaultOptions matches a 640x640 surface with the world origin in the
// bottom-left corner.
func DefaultOptions() Options {
	return Options{
		DefaultZoom:   0.5,
		DefaultOffset: ScreenPoint{X: 0, Y: 640},
		MinZoom:       0.05,
		MaxZoom:       10,
		ZoomStep:      1.1,
	}
}

// Controller owns the viewport state and applies pan/zoom input to it.
type Controller struct {
	state State
	opts  Options
}

// NewController creates a controller at the configured default view.
func NewController(opts Options) *Controller {
	if opts.MinZoom <= 0 {
		opts.MinZoom = DefaultOptions().MinZoom
	}
	if opts.MaxZoom < opts.MinZoom {
		opts.MaxZoom = opts.MinZoom
	}
	if opts.ZoomStep <= 1 {
		opts.ZoomStep = DefaultOptions().ZoomStep
	}
	c := &Controller{opts: opts}
	c.Reset()
	return c
}

// State returns a snapshot of the current viewport state.
func (c *Controller) State() State {
	return c.state
}

// Transform returns the mapping for the current state.
func (c *Controller) Transform() Transform {
	return c.state.Transform()
}

// Bounds returns the zoom limits.
func (c *Controller) Bounds() (float64, float64) {
	return c.opts.MinZoom, c.opts.MaxZoom
}

// Reset returns to the default zoom and offset and ends any pan.
func (c *Controller) Reset() {
	c.state = State{
		Zoom:   c.clampZoom(c.opts.DefaultZoom),
		Offset: c.opts.DefaultOffset,
	}
}

// ZoomAt changes the zoom by ZoomStep^delta while keeping the world point
// under pivot fixed on screen. Out-of-range results saturate at the bounds.
func (c *Controller) ZoomAt(pivot ScreenPoint, delta float64) {
	if delta == 0 || !common.Finite(delta, pivot.X, pivot.Y) {
		return
	}
	anchor := c.state.Transform().ToWorld(pivot)

	c.state.Zoom = c.clampZoom(c.state.Zoom * math.Pow(c.opts.ZoomStep, delta))

	moved := c.state.Transform().ToScreen(anchor)
	c.state.Offset = c.state.Offset.Add(pivot.Sub(moved))
}

// BeginPan starts a drag.
func (c *Controller) BeginPan() {
	c.state.Panning = true
}

// EndPan finishes a drag.
func (c *Controller) EndPan() {
	c.state.Panning = false
}

// PanBy moves the view by a screen delta while a drag is active.
func (c *Controller) PanBy(delta ScreenPoint) {
	if !c.state.Panning || !common.Finite(delta.X, delta.Y) {
		return
	}
	c.state.Offset = c.state.Offset.Add(delta)
}

// SetZoomBounds replaces the zoom limits and re-clamps the current zoom.
func (c *Controller) SetZoomBounds(minZoom, maxZoom float64) {
	if minZoom <= 0 || maxZoom < minZoom {
		return
	}
	c.opts.MinZoom = minZoom
	c.opts.MaxZoom = maxZoom
	c.state.Zoom = c.clampZoom(c.state.Zoom)
}

// SetDefaults replaces the view Reset returns to. The current view is left
// alone.
func (c *Controller) SetDefaults(zoom float64, offset ScreenPoint, step float64) {
	if zoom > 0 {
		c.opts.DefaultZoom = zoom
	}
	c.opts.DefaultOffset = offset
	if step > 1 {
		c.opts.ZoomStep = step
	}
}

// FitWorld zooms and centres the view so the world box [lo, hi] fits inside
// a width x height surface with padding pixels on every side.
func (c *Controller) FitWorld(lo, hi WorldPoint, width, height, padding float64) {
	c.FitWorldInto(lo, hi, ScreenRect{Max: ScreenPoint{X: width, Y: height}}, padding)
}

// FitWorldInto is FitWorld for a sub-area of the surface, such as the part
// left uncovered by a toolbar.
func (c *Controller) FitWorldInto(lo, hi WorldPoint, area ScreenRect, padding float64) {
	spanX := math.Abs(hi.X - lo.X)
	spanY := math.Abs(hi.Y - lo.Y)
	availW := area.Dx() - 2*padding
	availH := area.Dy() - 2*padding
	if availW <= 0 || availH <= 0 {
		return
	}

	zoom := c.opts.MaxZoom
	if spanX > 0 {
		zoom = math.Min(zoom, availW/spanX)
	}
	if spanY > 0 {
		zoom = math.Min(zoom, availH/spanY)
	}
	c.state.Zoom = c.clampZoom(zoom)

	center := WorldPoint{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}
	c.state.Offset = ScreenPoint{
		X: area.Min.X + area.Dx()/2 - center.X*c.state.Zoom,
		Y: area.Min.Y + area.Dy()/2 + center.Y*c.state.Zoom,
	}
}

func (c *Controller) clampZoom(z float64) float64 {
	return common.Clamp(z, c.opts.MinZoom, c.opts.MaxZoom)
}
