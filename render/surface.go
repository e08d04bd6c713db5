package render

import (
	"image"
	"image/color"

	"github.com/ktrzcinx/rtls-app/common"
)

// Surface is a 2-D drawing target with canvas-like state. Stroke colour, fill
// colour and alpha are saved and restored as a unit.
type Surface interface {
	Size() (w, h float64)
	Clear(c color.Color)

	SetStrokeColor(c color.Color)
	SetFillColor(c color.Color)
	SetAlpha(a float64)
	Save()
	Restore()

	Line(x0, y0, x1, y1, width float64)
	StrokeRect(x, y, w, h, width float64)
	FillRect(x, y, w, h float64)
	// Text draws s with its baseline at y using the fill colour.
	Text(s string, x, y float64)
	// Image draws img scaled into the given rectangle. A nil img is a no-op.
	Image(img image.Image, x, y, w, h float64)
}

type paint struct {
	stroke color.Color
	fill   color.Color
	alpha  float64
}

// paintStack holds the current paint and the saved ones. Both surfaces embed
// it so Save/Restore behave identically.
type paintStack struct {
	cur   paint
	saved []paint
}

func newPaintStack() paintStack {
	return paintStack{cur: paint{stroke: color.Black, fill: color.Black, alpha: 1}}
}

func (p *paintStack) SetStrokeColor(c color.Color) {
	if c != nil {
		p.cur.stroke = c
	}
}

func (p *paintStack) SetFillColor(c color.Color) {
	if c != nil {
		p.cur.fill = c
	}
}

func (p *paintStack) SetAlpha(a float64) {
	p.cur.alpha = common.Clamp(a, 0, 1)
}

func (p *paintStack) Save() {
	p.saved = append(p.saved, p.cur)
}

// Restore pops the last saved paint. An unbalanced Restore is ignored.
func (p *paintStack) Restore() {
	if len(p.saved) == 0 {
		return
	}
	p.cur = p.saved[len(p.saved)-1]
	p.saved = p.saved[:len(p.saved)-1]
}

func (p *paintStack) reset() {
	p.saved = p.saved[:0]
	p.cur = newPaintStack().cur
}

func (p *paintStack) strokeColor() color.Color {
	return withAlpha(p.cur.stroke, p.cur.alpha)
}

func (p *paintStack) fillColor() color.Color {
	return withAlpha(p.cur.fill, p.cur.alpha)
}

// withAlpha scales c by a. Works on premultiplied components.
func withAlpha(c color.Color, a float64) color.Color {
	if a >= 1 {
		return c
	}
	r, g, b, al := c.RGBA()
	return color.RGBA64{
		R: uint16(float64(r) * a),
		G: uint16(float64(g) * a),
		B: uint16(float64(b) * a),
		A: uint16(float64(al) * a),
	}
}
