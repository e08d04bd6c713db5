package viewport

// WorldPoint is a position in the zone's coordinate system. Y grows upward.
type WorldPoint struct {
	X float64
	Y float64
}

// ScreenPoint is a pixel position on the drawing surface. Y grows downward.
type ScreenPoint struct {
	X float64
	Y float64
}

// Add returns p shifted by d.
func (p ScreenPoint) Add(d ScreenPoint) ScreenPoint {
	return ScreenPoint{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns p - d.
func (p ScreenPoint) Sub(d ScreenPoint) ScreenPoint {
	return ScreenPoint{X: p.X - d.X, Y: p.Y - d.Y}
}

// ScreenRect is an axis-aligned area of the surface.
type ScreenRect struct {
	Min ScreenPoint
	Max ScreenPoint
}

// Dx returns the rectangle's width.
func (r ScreenRect) Dx() float64 {
	return r.Max.X - r.Min.X
}

// Dy returns the rectangle's height.
func (r ScreenRect) Dy() float64 {
	return r.Max.Y - r.Min.Y
}

// Transform maps between world and screen coordinates for a fixed zoom and
// offset. Zoom must be non-zero; the Controller guarantees that.
type Transform struct {
	Zoom   float64
	Offset ScreenPoint
}

// ToScreen converts a world position to surface pixels.
func (t Transform) ToScreen(w WorldPoint) ScreenPoint {
	return ScreenPoint{
		X: w.X*t.Zoom + t.Offset.X,
		Y: -w.Y*t.Zoom + t.Offset.Y,
	}
}

// ToWorld converts surface pixels back to a world position.
func (t Transform) ToWorld(s ScreenPoint) WorldPoint {
	tx := (s.X - t.Offset.X) / t.Zoom
	ty := (s.Y - t.Offset.Y) / t.Zoom
	return WorldPoint{X: tx, Y: -ty}
}
