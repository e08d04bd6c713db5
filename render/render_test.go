package render

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/ktrzcinx/rtls-app/viewport"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
)

type op struct {
	kind  string
	x, y  float64
	w, h  float64
	text  string
	img   image.Image
	alpha float64
}

// recordingSurface logs every draw call with the alpha in effect.
type recordingSurface struct {
	paintStack
	w, h    float64
	ops     []op
	panicOn string
}

func newRecordingSurface(w, h float64) *recordingSurface {
	return &recordingSurface{paintStack: newPaintStack(), w: w, h: h}
}

func (s *recordingSurface) record(o op) {
	o.alpha = s.cur.alpha
	s.ops = append(s.ops, o)
}

func (s *recordingSurface) Size() (float64, float64) { return s.w, s.h }
func (s *recordingSurface) Clear(c color.Color)      { s.record(op{kind: "clear"}) }
func (s *recordingSurface) Line(x0, y0, x1, y1, width float64) {
	s.record(op{kind: "line", x: x0, y: y0, w: x1, h: y1})
}
func (s *recordingSurface) StrokeRect(x, y, w, h, width float64) {
	s.record(op{kind: "strokeRect", x: x, y: y, w: w, h: h})
}
func (s *recordingSurface) FillRect(x, y, w, h float64) {
	s.record(op{kind: "fillRect", x: x, y: y, w: w, h: h})
}
func (s *recordingSurface) Text(str string, x, y float64) {
	if s.panicOn != "" && str == s.panicOn {
		panic("boom")
	}
	s.record(op{kind: "text", text: str, x: x, y: y})
}
func (s *recordingSurface) Image(img image.Image, x, y, w, h float64) {
	if img == nil {
		return
	}
	s.record(op{kind: "image", img: img, x: x, y: y, w: w, h: h})
}

func (s *recordingSurface) find(kind string) []op {
	var out []op
	for _, o := range s.ops {
		if o.kind == kind {
			out = append(out, o)
		}
	}
	return out
}

func (s *recordingSurface) text(str string) (op, bool) {
	for _, o := range s.ops {
		if o.kind == "text" && o.text == str {
			return o, true
		}
	}
	return op{}, false
}

type staticSource []zone.DevicePosition

func (s staticSource) AllDevicePositions(int64) []zone.DevicePosition {
	return s
}

func device(id int, x, y float64) zone.DevicePosition {
	return zone.DevicePosition{ID: id, Pos: zone.Trace{Cord: [3]float64{x, y, 0}}}
}

func solidIcon() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func defaultView() viewport.State {
	return viewport.NewController(viewport.DefaultOptions()).State()
}

func TestRendererDrawsVisibleDeviceAtFullOpacity(t *testing.T) {
	icon := solidIcon()
	r := NewRenderer(DefaultStyle(), NewIconTable([]image.Image{icon}), staticSource{device(1, 100, 50)}, zerolog.Nop())
	s := newRecordingSurface(640, 640)

	stats := r.Draw(s, defaultView(), 0)

	if stats.Devices != 1 || stats.Clamped != 0 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	images := s.find("image")
	if len(images) != 1 {
		t.Fatalf("expected one icon, got %d", len(images))
	}
	got := images[0]
	// (100, 50) lands on (50, 615); the icon is centred there.
	if got.x != 45 || got.y != 610 || got.w != 10 || got.alpha != 1 {
		t.Fatalf("unexpected icon draw %+v", got)
	}
	if _, ok := s.text("1"); !ok {
		t.Fatalf("missing id label")
	}
}

func TestRendererPinsFarDeviceWithReducedOpacity(t *testing.T) {
	style := DefaultStyle()
	r := NewRenderer(style, NewIconTable([]image.Image{solidIcon()}), staticSource{device(7, 10000, 10000)}, zerolog.Nop())
	s := newRecordingSurface(640, 640)

	stats := r.Draw(s, defaultView(), 0)

	if stats.Clamped != 1 {
		t.Fatalf("expected the device to be clamped, got %+v", stats)
	}
	img := s.find("image")[0]
	cx, cy := img.x+img.w/2, img.y+img.h/2
	if cx != 637.5 || cy != 5 {
		t.Fatalf("expected pin at (637.5, 5), got (%v, %v)", cx, cy)
	}
	if img.alpha != style.ApproxAlpha {
		t.Fatalf("expected alpha %v, got %v", style.ApproxAlpha, img.alpha)
	}
	if label, _ := s.text("7"); label.alpha != style.ApproxAlpha {
		t.Fatalf("label should share the reduced alpha, got %v", label.alpha)
	}
}

func TestRendererIsolatesBadDevices(t *testing.T) {
	src := staticSource{
		device(1, 10, 10),
		device(2, math.NaN(), 0),
		device(3, math.Inf(1), 0),
		device(4, 20, 20),
		device(5, 30, 30),
	}
	r := NewRenderer(DefaultStyle(), NewIconTable([]image.Image{solidIcon()}), src, zerolog.Nop())
	s := newRecordingSurface(640, 640)
	s.panicOn = "4"

	stats := r.Draw(s, defaultView(), 0)

	if stats.Devices != 5 || stats.Skipped != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	for _, id := range []string{"1", "5"} {
		if _, ok := s.text(id); !ok {
			t.Fatalf("device %s should still be drawn", id)
		}
	}
	// The panicking device restored its paint state.
	if len(s.saved) != 0 || s.cur.alpha != 1 {
		t.Fatalf("paint stack left unbalanced: %d saved, alpha %v", len(s.saved), s.cur.alpha)
	}
}

func TestRendererSkipsMissingIcon(t *testing.T) {
	icons := NewIconTable([]image.Image{solidIcon(), nil})
	src := staticSource{device(1, 10, 10), device(2, 20, 20)}
	r := NewRenderer(DefaultStyle(), icons, src, zerolog.Nop())
	s := newRecordingSurface(640, 640)

	stats := r.Draw(s, defaultView(), 0)

	if stats.Skipped != 0 {
		t.Fatalf("a missing icon is not a failure: %+v", stats)
	}
	if n := len(s.find("image")); n != 1 {
		t.Fatalf("expected one icon, got %d", n)
	}
	if _, ok := s.text("1"); !ok {
		t.Fatalf("missing label for device 1")
	}
	if _, ok := s.text("2"); !ok {
		t.Fatalf("device 2 should still get its label")
	}
}

func TestRendererGridAndBorder(t *testing.T) {
	r := NewRenderer(DefaultStyle(), nil, staticSource{}, zerolog.Nop())
	s := newRecordingSurface(640, 640)

	stats := r.Draw(s, defaultView(), 0)

	if stats.Grid.RealSpacing != 100 || stats.Grid.PixelSpacing != 50 {
		t.Fatalf("unexpected grid %+v", stats.Grid)
	}
	if s.ops[0].kind != "clear" {
		t.Fatalf("frame must start with a clear, got %q", s.ops[0].kind)
	}
	// 12 vertical + 13 horizontal lines on a 640 surface at 50 px spacing.
	if n := len(s.find("line")); n != 25 {
		t.Fatalf("expected 25 grid lines, got %d", n)
	}
	for _, want := range []string{"100", "1200", "0"} {
		if _, ok := s.text(want); !ok {
			t.Fatalf("missing grid label %q", want)
		}
	}
	if rects := s.find("strokeRect"); len(rects) != 1 || rects[0].w != 640 {
		t.Fatalf("expected one border rect, got %+v", rects)
	}
}

func TestRendererShowCoords(t *testing.T) {
	style := DefaultStyle()
	style.ShowCoords = true
	style.GridLabels = false
	r := NewRenderer(style, nil, staticSource{device(3, 12.5, -4)}, zerolog.Nop())
	s := newRecordingSurface(640, 640)

	r.Draw(s, defaultView(), 0)

	if _, ok := s.text("(12.5, -4.0)"); !ok {
		t.Fatalf("missing coordinate label in %+v", s.find("text"))
	}
}

func TestRendererIgnoresEmptySurface(t *testing.T) {
	r := NewRenderer(DefaultStyle(), nil, staticSource{device(1, 0, 0)}, zerolog.Nop())
	s := newRecordingSurface(0, 0)
	if stats := r.Draw(s, defaultView(), 0); stats.Devices != 0 || len(s.ops) != 0 {
		t.Fatalf("nothing should be drawn, got %+v and %d ops", stats, len(s.ops))
	}
}

type passFunc func(f *Frame)

func (fn passFunc) Draw(f *Frame) { fn(f) }

func TestRendererOverlayPassRunsLast(t *testing.T) {
	r := NewRenderer(DefaultStyle(), nil, staticSource{device(1, 100, 50)}, zerolog.Nop())
	r.AddPass(nil)
	var seen FrameStats
	r.AddPass(passFunc(func(f *Frame) {
		seen = f.Stats
		f.Surface.Text("overlay", 1, 2)
	}))
	if got := r.pipeline.Len(); got != 5 {
		t.Fatalf("nil pass should be ignored, got %d passes", got)
	}

	s := newRecordingSurface(640, 640)
	r.Draw(s, defaultView(), 0)

	if seen.Devices != 1 {
		t.Fatalf("overlay should see the device pass stats, got %+v", seen)
	}
	last := s.ops[len(s.ops)-1]
	if last.kind != "text" || last.text != "overlay" {
		t.Fatalf("overlay should paint last, got %+v", last)
	}
}

func TestRendererNilSource(t *testing.T) {
	r := NewRenderer(DefaultStyle(), nil, nil, zerolog.Nop())
	s := newRecordingSurface(320, 240)
	if stats := r.Draw(s, defaultView(), 0); stats.Devices != 0 {
		t.Fatalf("no source should draw no devices, got %+v", stats)
	}
	if len(s.find("clear")) != 1 {
		t.Fatalf("the background should still be drawn")
	}
}

func TestIconTableBuckets(t *testing.T) {
	a, b := solidIcon(), solidIcon()
	table := NewIconTable([]image.Image{a, b})

	cases := []struct {
		id   int
		want image.Image
	}{
		{0, a}, {1, b}, {2, a}, {7, b}, {-1, b},
	}
	for _, c := range cases {
		if got := table.For(c.id); got != c.want {
			t.Fatalf("For(%d) picked the wrong bucket", c.id)
		}
	}

	var empty *IconTable
	if empty.For(3) != nil || empty.Len() != 0 {
		t.Fatalf("nil table should be empty")
	}
}

func TestPaintStack(t *testing.T) {
	p := newPaintStack()
	p.SetAlpha(0.5)
	p.Save()
	p.SetAlpha(2)
	if p.cur.alpha != 1 {
		t.Fatalf("alpha should clamp to 1, got %v", p.cur.alpha)
	}
	p.Restore()
	if p.cur.alpha != 0.5 {
		t.Fatalf("expected restored alpha 0.5, got %v", p.cur.alpha)
	}
	p.Restore()
	if p.cur.alpha != 0.5 {
		t.Fatalf("unbalanced restore should be ignored")
	}

	_, _, _, a := withAlpha(color.White, 0.5).RGBA()
	if a != 0x7fff {
		t.Fatalf("expected half alpha, got %#x", a)
	}
}

func TestLoopTickAndStop(t *testing.T) {
	l := NewLoop()
	calls := 0
	frame := func() { calls++ }

	if !l.Tick(frame) || calls != 1 {
		t.Fatalf("first tick should run")
	}
	l.SetPaused(true)
	if !l.Tick(frame) || calls != 1 {
		t.Fatalf("paused tick should not run the frame")
	}
	l.SetPaused(false)
	l.Stop()
	l.Stop()
	if l.Tick(frame) || calls != 1 {
		t.Fatalf("stopped loop should not run")
	}
	if l.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", l.Frames())
	}
}

func TestLoopRunStops(t *testing.T) {
	l := NewLoop()
	done := make(chan error, 1)
	go func() {
		done <- l.Run(context.Background(), time.Millisecond, func(time.Time) {
			if l.Frames() >= 2 {
				l.Stop()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
}

func TestLoopRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewLoop().Run(ctx, time.Hour, func(time.Time) {}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
