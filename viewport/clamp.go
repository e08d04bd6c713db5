package viewport

import "github.com/ktrzcinx/rtls-app/common"

// ClampResult is a screen position kept inside the surface. Exact is false
// when the position had to be moved.
type ClampResult struct {
	Pos   ScreenPoint
	Exact bool
}

// BorderClamp pins positions to the visible surface so off-screen devices
// still show up as edge markers.
type BorderClamp struct {
	Width  float64
	Height float64
}

// Clamp keeps p inside [margin/2, W-margin/2] x [margin, H-margin]. A
// non-positive margin disables clamping.
func (b BorderClamp) Clamp(p ScreenPoint, margin float64) ClampResult {
	if margin <= 0 {
		return ClampResult{Pos: p, Exact: true}
	}

	x := common.Clamp(p.X, margin/2, b.Width-margin/2)
	y := common.Clamp(p.Y, margin, b.Height-margin)
	return ClampResult{
		Pos:   ScreenPoint{X: x, Y: y},
		Exact: x == p.X && y == p.Y,
	}
}
