package render

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/gogpu/gg"
	ggtext "github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// GGSurface rasterises frames off-screen with gogpu/gg. It backs the
// headless snapshot command and renderer tests that need real pixels.
type GGSurface struct {
	paintStack
	dc     *gg.Context
	w, h   int
	images map[image.Image]*gg.ImageBuf
	err    error
}

// NewGGSurface allocates a w x h canvas with a Go Regular face at fontSize.
func NewGGSurface(w, h int, fontSize float64, icons *IconTable) (*GGSurface, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: gg surface: invalid size %dx%d", w, h)
	}
	src, err := ggtext.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: gg surface: font: %w", err)
	}

	s := &GGSurface{
		paintStack: newPaintStack(),
		dc:         gg.NewContext(w, h),
		w:          w,
		h:          h,
		images:     make(map[image.Image]*gg.ImageBuf),
	}
	s.dc.SetFont(src.Face(fontSize))
	for _, img := range icons.Images() {
		s.register(img)
	}
	return s, nil
}

func (s *GGSurface) register(img image.Image) *gg.ImageBuf {
	if img == nil {
		return nil
	}
	if buf, ok := s.images[img]; ok {
		return buf
	}
	buf := gg.ImageBufFromImage(img)
	s.images[img] = buf
	return buf
}

// Err returns the first rasterisation error since the last Clear.
func (s *GGSurface) Err() error {
	return s.err
}

func (s *GGSurface) keep(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}

// Snapshot returns the rendered frame.
func (s *GGSurface) Snapshot() image.Image {
	return s.dc.Image()
}

// EncodePNG writes the current frame as PNG.
func (s *GGSurface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}

// Close releases the context's resources.
func (s *GGSurface) Close() error {
	return s.dc.Close()
}

func (s *GGSurface) Size() (float64, float64) {
	return float64(s.w), float64(s.h)
}

func (s *GGSurface) Clear(c color.Color) {
	s.err = nil
	s.reset()
	s.dc.ClearWithColor(gg.FromColor(c))
}

func (s *GGSurface) Line(x0, y0, x1, y1, width float64) {
	s.dc.SetColor(s.strokeColor())
	s.dc.SetLineWidth(width)
	s.dc.DrawLine(x0, y0, x1, y1)
	s.keep(s.dc.Stroke())
}

func (s *GGSurface) StrokeRect(x, y, w, h, width float64) {
	s.dc.SetColor(s.strokeColor())
	s.dc.SetLineWidth(width)
	s.dc.DrawRectangle(x, y, w, h)
	s.keep(s.dc.Stroke())
}

func (s *GGSurface) FillRect(x, y, w, h float64) {
	s.dc.SetColor(s.fillColor())
	s.dc.DrawRectangle(x, y, w, h)
	s.keep(s.dc.Fill())
}

func (s *GGSurface) Text(str string, x, y float64) {
	if str == "" {
		return
	}
	s.dc.SetColor(s.fillColor())
	s.dc.DrawString(str, x, y)
}

func (s *GGSurface) Image(img image.Image, x, y, w, h float64) {
	buf := s.register(img)
	if buf == nil {
		return
	}
	s.dc.DrawImageEx(buf, gg.DrawImageOptions{
		X:             x,
		Y:             y,
		DstWidth:      w,
		DstHeight:     h,
		Interpolation: gg.InterpBilinear,
		Opacity:       s.cur.alpha,
		BlendMode:     gg.BlendNormal,
	})
}
