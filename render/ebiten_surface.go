package render

import (
	"bytes"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"
)

// EbitenSurface draws onto an ebiten image. Call Begin with the frame's
// screen before drawing.
type EbitenSurface struct {
	paintStack
	dst    *ebiten.Image
	face   *text.GoTextFace
	images map[image.Image]*ebiten.Image
}

// NewEbitenFace returns a Go Regular face at the given size.
func NewEbitenFace(size float64) (*text.GoTextFace, error) {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, err
	}
	return &text.GoTextFace{Source: src, Size: size}, nil
}

// NewEbitenSurface converts every icon to an ebiten image up front so frames
// never upload textures.
func NewEbitenSurface(face *text.GoTextFace, icons *IconTable) *EbitenSurface {
	s := &EbitenSurface{
		paintStack: newPaintStack(),
		face:       face,
		images:     make(map[image.Image]*ebiten.Image),
	}
	for _, img := range icons.Images() {
		s.register(img)
	}
	return s
}

// Begin targets dst for the next frame and resets the paint state.
func (s *EbitenSurface) Begin(dst *ebiten.Image) {
	s.dst = dst
	s.reset()
}

func (s *EbitenSurface) register(img image.Image) *ebiten.Image {
	if img == nil {
		return nil
	}
	if e, ok := s.images[img]; ok {
		return e
	}
	e, ok := img.(*ebiten.Image)
	if !ok {
		e = ebiten.NewImageFromImage(img)
	}
	s.images[img] = e
	return e
}

func (s *EbitenSurface) Size() (float64, float64) {
	if s.dst == nil {
		return 0, 0
	}
	b := s.dst.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

func (s *EbitenSurface) Clear(c color.Color) {
	if s.dst == nil {
		return
	}
	s.dst.Fill(c)
}

func (s *EbitenSurface) Line(x0, y0, x1, y1, width float64) {
	if s.dst == nil {
		return
	}
	vector.StrokeLine(s.dst, float32(x0), float32(y0), float32(x1), float32(y1), float32(width), s.strokeColor(), true)
}

func (s *EbitenSurface) StrokeRect(x, y, w, h, width float64) {
	if s.dst == nil {
		return
	}
	vector.StrokeRect(s.dst, float32(x), float32(y), float32(w), float32(h), float32(width), s.strokeColor(), false)
}

func (s *EbitenSurface) FillRect(x, y, w, h float64) {
	if s.dst == nil {
		return
	}
	vector.FillRect(s.dst, float32(x), float32(y), float32(w), float32(h), s.fillColor(), false)
}

func (s *EbitenSurface) Text(str string, x, y float64) {
	if s.dst == nil || s.face == nil || str == "" {
		return
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y-s.face.Metrics().HAscent)
	op.ColorScale.ScaleWithColor(s.fillColor())
	text.Draw(s.dst, str, s.face, op)
}

func (s *EbitenSurface) Image(img image.Image, x, y, w, h float64) {
	if s.dst == nil {
		return
	}
	e := s.register(img)
	if e == nil {
		return
	}
	b := e.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleAlpha(float32(s.cur.alpha))
	op.Filter = ebiten.FilterLinear
	s.dst.DrawImage(e, op)
}
