package viewport

import (
	"fmt"
	"math"
)

// GridSpec is the grid spacing chosen for one frame, in world units and in
// pixels at the active zoom.
type GridSpec struct {
	RealSpacing  float64
	PixelSpacing float64
}

// AxisStart locates the first grid line along one axis.
type AxisStart struct {
	// Real is the world-space line at or before the surface edge.
	Real float64
	// Pixel is the surface position of the first line, in (0, PixelSpacing].
	Pixel float64
}

// ResolveSpacing picks a spacing from the 1/2/5/10 x 10^k ladder so that
// roughly target cells span the surface width at the given zoom.
//
// Callers must pass positive arguments; the zoom clamp and fixed surface
// dimensions make any other input a programming error.
func ResolveSpacing(surfaceWidth, zoom, target float64) GridSpec {
	if !(surfaceWidth > 0) || !(zoom > 0) || !(target > 0) {
		panic(fmt.Sprintf("viewport: resolve spacing: width=%v zoom=%v target=%v", surfaceWidth, zoom, target))
	}

	rng := surfaceWidth / zoom / target
	exponent := math.Floor(math.Log10(rng))
	magnitude := math.Pow(10, exponent)
	fraction := rng / magnitude

	var nice float64
	switch {
	case fraction < 1.5:
		nice = 1
	case fraction < 3:
		nice = 2
	case fraction < 7:
		nice = 5
	default:
		nice = 10
	}

	spacing := nice * magnitude
	return GridSpec{RealSpacing: spacing, PixelSpacing: spacing * zoom}
}

// StartOffset anchors the grid to world coordinates for an axis whose world
// origin sits at offsetPx on the surface.
func (g GridSpec) StartOffset(offsetPx, zoom float64) AxisStart {
	first := math.Floor(-offsetPx/zoom/g.RealSpacing) * g.RealSpacing

	pixel := math.Mod(offsetPx, g.PixelSpacing)
	if pixel <= 0 {
		pixel += g.PixelSpacing
	}
	return AxisStart{Real: first, Pixel: pixel}
}

// Lines returns the surface positions of every grid line in (0, extentPx]
// along one axis.
func (g GridSpec) Lines(offsetPx, zoom, extentPx float64) []float64 {
	if !(g.PixelSpacing > 0) {
		return nil
	}
	start := g.StartOffset(offsetPx, zoom)
	n := int(math.Floor((extentPx-start.Pixel)/g.PixelSpacing)) + 1
	if n <= 0 {
		return nil
	}
	lines := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, start.Pixel+float64(i)*g.PixelSpacing)
	}
	return lines
}

// Label rounds a world coordinate to the precision the spacing can express,
// so that lines read "0.2" rather than "0.20000000000000004".
func (g GridSpec) Label(v float64) string {
	decimals := 0
	if g.RealSpacing < 1 {
		decimals = int(math.Ceil(-math.Log10(g.RealSpacing)))
	}
	s := fmt.Sprintf("%.*f", decimals, v)
	if len(s) > 1 && s[0] == '-' && isZero(s[1:]) {
		s = s[1:]
	}
	return s
}

func isZero(s string) bool {
	for _, r := range s {
		if r != '0' && r != '.' {
			return false
		}
	}
	return true
}
