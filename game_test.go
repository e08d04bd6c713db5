package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ktrzcinx/rtls-app/config"
	"github.com/ktrzcinx/rtls-app/metrics"
	"github.com/ktrzcinx/rtls-app/scenario"
	"github.com/ktrzcinx/rtls-app/viewport"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
)

func newTestGame(t *testing.T, z *zone.Zone, runner *scenario.Runner) *Game {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if z == nil {
		z = zone.New()
	}
	g := newGame(GameOptions{
		Config:   cfg,
		Log:      zerolog.Nop(),
		Zone:     z,
		Scenario: runner,
		Clock:    func() int64 { return 1000 },
	})
	g.applyLoop = func(config.LoopConfig) {}
	return g
}

// countingSurface counts draw calls and keeps the text it was given.
type countingSurface struct {
	w, h  float64
	calls int
	texts []string
}

func (s *countingSurface) Size() (float64, float64)                              { return s.w, s.h }
func (s *countingSurface) Clear(color.Color)                                     { s.calls++ }
func (s *countingSurface) SetStrokeColor(color.Color)                            {}
func (s *countingSurface) SetFillColor(color.Color)                              {}
func (s *countingSurface) SetAlpha(float64)                                      {}
func (s *countingSurface) Save()                                                 {}
func (s *countingSurface) Restore()                                              {}
func (s *countingSurface) Line(_, _, _, _, _ float64)                            { s.calls++ }
func (s *countingSurface) StrokeRect(_, _, _, _, _ float64)                      { s.calls++ }
func (s *countingSurface) FillRect(_, _, _, _ float64)                           { s.calls++ }
func (s *countingSurface) Image(image.Image, float64, float64, float64, float64) { s.calls++ }
func (s *countingSurface) Text(str string, _, _ float64) {
	s.calls++
	s.texts = append(s.texts, str)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestHandleInput_pan(t *testing.T) {
	g := newTestGame(t, nil, nil)
	start := g.ctrl.State().Offset

	g.handleInput(frameInput{cursor: viewport.ScreenPoint{X: 100, Y: 100}, panStart: true, panHeld: true})
	g.handleInput(frameInput{cursor: viewport.ScreenPoint{X: 130, Y: 90}, panHeld: true})
	if !g.ctrl.State().Panning {
		t.Fatalf("expected an active pan")
	}
	g.handleInput(frameInput{cursor: viewport.ScreenPoint{X: 130, Y: 90}, panEnd: true})

	st := g.ctrl.State()
	if st.Panning {
		t.Fatalf("expected the pan to end")
	}
	if !near(st.Offset.X, start.X+30) || !near(st.Offset.Y, start.Y-10) {
		t.Fatalf("unexpected offset %+v (start %+v)", st.Offset, start)
	}

	// Moving without a drag leaves the view alone.
	g.handleInput(frameInput{cursor: viewport.ScreenPoint{X: 300, Y: 300}})
	if g.ctrl.State().Offset != st.Offset {
		t.Fatalf("offset moved without a drag")
	}
}

func TestHandleInput_wheelZoomsAtCursor(t *testing.T) {
	g := newTestGame(t, nil, nil)
	cursor := viewport.ScreenPoint{X: 200, Y: 300}
	before := g.ctrl.Transform().ToWorld(cursor)

	g.handleInput(frameInput{cursor: cursor, wheelY: 1})

	st := g.ctrl.State()
	if !near(st.Zoom, 0.5*1.1) {
		t.Fatalf("expected zoom 0.55, got %v", st.Zoom)
	}
	after := g.ctrl.Transform().ToWorld(cursor)
	if math.Abs(after.X-before.X) > 1e-9 || math.Abs(after.Y-before.Y) > 1e-9 {
		t.Fatalf("world point under cursor moved: %+v -> %+v", before, after)
	}
}

func TestHandleInput_keys(t *testing.T) {
	g := newTestGame(t, nil, nil)
	def := g.ctrl.State()

	g.handleInput(frameInput{wheelY: 3, cursor: viewport.ScreenPoint{X: 10, Y: 10}})
	g.handleInput(frameInput{reset: true})
	if g.ctrl.State() != def {
		t.Fatalf("reset: expected %+v, got %+v", def, g.ctrl.State())
	}

	g.handleInput(frameInput{toggleCoords: true})
	if !g.renderer.Style().ShowCoords {
		t.Fatalf("expected coordinates on")
	}
	g.handleInput(frameInput{toggleCoords: true})
	if g.renderer.Style().ShowCoords {
		t.Fatalf("expected coordinates off")
	}

	g.handleInput(frameInput{quit: true})
	if !g.loop.Stopped() {
		t.Fatalf("expected the loop to stop")
	}
}

func TestFitWorld(t *testing.T) {
	z := zone.New()
	_ = z.AddDevice(1, 0, 0, 0)
	_ = z.AddDevice(2, 100, 100, 0)
	g := newTestGame(t, z, nil)

	g.handleInput(frameInput{fit: true})

	tr := g.ctrl.Transform()
	lo := tr.ToScreen(viewport.WorldPoint{X: 0, Y: 0})
	hi := tr.ToScreen(viewport.WorldPoint{X: 100, Y: 100})
	if lo.X < 0 || hi.X > g.width || hi.Y < hudHeight || lo.Y > g.height {
		t.Fatalf("fitted box off screen: lo=%+v hi=%+v", lo, hi)
	}
	if !near((lo.Y+hi.Y)/2, hudHeight+(g.height-hudHeight)/2) {
		t.Fatalf("expected the box centred below the toolbar, got %v..%v", hi.Y, lo.Y)
	}
	if g.ctrl.State().Panning {
		t.Fatalf("fit must not leave a pan running")
	}
}

func TestFitWorld_emptyZone(t *testing.T) {
	g := newTestGame(t, nil, nil)
	before := g.ctrl.State()
	g.fitWorld()
	if g.ctrl.State() != before {
		t.Fatalf("empty zone should not move the view")
	}
}

func TestRenderFrame_pausedDrawsNothing(t *testing.T) {
	z := zone.New()
	_ = z.AddDevice(1, 10, 10, 0)
	g := newTestGame(t, z, nil)
	s := &countingSurface{w: g.width, h: g.height}

	g.loop.SetPaused(true)
	if _, ok := g.renderFrame(s); ok || s.calls != 0 {
		t.Fatalf("a paused game drew %d calls (ok=%v)", s.calls, ok)
	}
	if !g.loop.Tick(func() { t.Fatalf("paused tick ran its frame") }) || g.loop.Frames() != 0 {
		t.Fatalf("paused ticks should neither stop nor count")
	}

	g.loop.SetPaused(false)
	stats, ok := g.renderFrame(s)
	if !ok || s.calls == 0 || stats.Devices != 1 {
		t.Fatalf("expected a frame with one device, got ok=%v calls=%d stats=%+v", ok, s.calls, stats)
	}
}

func TestRenderFrame_nilZone(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	g := newGame(GameOptions{Config: cfg, Log: zerolog.Nop(), Clock: func() int64 { return 0 }})
	s := &countingSurface{w: g.width, h: g.height}

	stats, ok := g.renderFrame(s)
	if !ok || stats.Devices != 0 || s.calls == 0 {
		t.Fatalf("expected an empty map frame, got ok=%v calls=%d stats=%+v", ok, s.calls, stats)
	}
}

func TestCursorReadout(t *testing.T) {
	g := newTestGame(t, nil, nil)
	s := &countingSurface{w: g.width, h: g.height}
	cursor := viewport.ScreenPoint{X: 100, Y: 300}

	g.handleInput(frameInput{cursor: cursor})
	g.renderFrame(s)

	w := g.ctrl.Transform().ToWorld(cursor)
	want := fmt.Sprintf("x %.1f  y %.1f", w.X, w.Y)
	if n := len(s.texts); n == 0 || s.texts[n-1] != want {
		t.Fatalf("expected the readout %q drawn last, got %q", want, s.texts)
	}

	// Over the toolbar the readout is hidden.
	g.handleInput(frameInput{cursor: viewport.ScreenPoint{X: 100, Y: hudHeight - 1}})
	s.texts = nil
	g.renderFrame(s)
	for _, txt := range s.texts {
		if strings.HasPrefix(txt, "x ") {
			t.Fatalf("readout drawn over the toolbar: %q", txt)
		}
	}
}

func TestApplyConfig_loopAndIcons(t *testing.T) {
	g := newTestGame(t, nil, nil)
	var applied []config.LoopConfig
	g.applyLoop = func(lc config.LoopConfig) { applied = append(applied, lc) }
	buckets := g.cfg.Devices.IconBuckets

	next, err := config.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	next.Loop.TPS = 30
	next.Loop.PauseWhenUnfocused = !next.Loop.PauseWhenUnfocused
	next.Devices.IconBuckets = buckets + 3
	g.applyConfig(next)

	if len(applied) != 1 || applied[0] != next.Loop {
		t.Fatalf("expected the new loop settings applied once, got %+v", applied)
	}
	if g.cfg.Devices.IconBuckets != buckets {
		t.Fatalf("icon buckets must keep their startup value, got %d", g.cfg.Devices.IconBuckets)
	}

	same, err := config.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	same.Loop = next.Loop
	g.applyConfig(same)
	if len(applied) != 1 {
		t.Fatalf("unchanged loop settings should not be re-applied")
	}
}

func TestTickScenario(t *testing.T) {
	z := zone.New()
	r, err := scenario.Load("demo.tengo", z, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := r.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	g := newTestGame(t, z, r)
	base := r.Stats().Measurements

	g.tickScenario(0)
	g.tickScenario(50)
	if got := r.Stats().Measurements; got != base+4 {
		t.Fatalf("expected one tick before tick_ms elapsed, got %d measurements", got-base)
	}
	g.tickScenario(100)
	if got := r.Stats().Measurements; got != base+8 {
		t.Fatalf("expected a second tick, got %d measurements", got-base)
	}
}

func TestTickScenario_failureStopsScenario(t *testing.T) {
	src := []byte(`
setup := func(engine, state) {}
tick := func(engine, state, now) { engine.add_measurement(1) }
`)
	r, err := scenario.New("broken", src, zone.New(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := newTestGame(t, nil, r)
	g.tickScenario(0)
	if g.scenario != nil {
		t.Fatalf("expected the failing scenario to be dropped")
	}
}

func TestApplyReloads(t *testing.T) {
	reloads := make(chan *config.Config, 1)
	g := newTestGame(t, nil, nil)
	g.reloads = reloads
	g.toggleCoords()

	next, err := config.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	next.Viewport.MinZoom = 1
	next.Viewport.MaxZoom = 2
	next.Grid.Target = 4
	next.Surface.Width = 100
	reloads <- next

	g.applyReloads()

	if z := g.ctrl.State().Zoom; z != 1 {
		t.Fatalf("expected the zoom clamped to 1, got %v", z)
	}
	if lo, hi := g.ctrl.Bounds(); lo != 1 || hi != 2 {
		t.Fatalf("unexpected bounds %v..%v", lo, hi)
	}
	st := g.renderer.Style()
	if st.GridTarget != 4 {
		t.Fatalf("expected grid target 4, got %v", st.GridTarget)
	}
	if !st.ShowCoords {
		t.Fatalf("a reload should keep the toggled coordinates")
	}
	if g.width != 640 || g.cfg.Surface.Width != 640 {
		t.Fatalf("surface width must not change at runtime")
	}

	close(reloads)
	g.applyReloads()
	if g.reloads != nil {
		t.Fatalf("expected a closed reload channel to be dropped")
	}
}

func TestMeteredZoneCountsIngest(t *testing.T) {
	m := metrics.New()
	z := meteredZone{Zone: zone.New(), metrics: m}
	_ = z.AddDevice(1, 0, 0, 0)
	_ = z.AddDevice(1, 0, 0, 0)
	_ = z.AddMeasurement(1, 9, 3, 0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`rtls_ingested_total{kind="device",result="ok"} 1`,
		`rtls_ingested_total{kind="device",result="rejected"} 1`,
		`rtls_ingested_total{kind="measurement",result="rejected"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body=%s", want, body)
		}
	}
}

func TestWatchConfigDeliversValidReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtls.yaml")
	if err := os.WriteFile(path, []byte("grid:\n  target: 8\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := config.NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx := t.Context()
	out := make(chan *config.Config, 1)
	go watchConfig(ctx, w, path, "debug", out, zerolog.Nop())

	if err := os.WriteFile(path, []byte("grid:\n  target: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cfg := <-out:
		if cfg.Grid.Target != 5 {
			t.Fatalf("expected target 5, got %v", cfg.Grid.Target)
		}
		if cfg.Log.Level != "debug" {
			t.Fatalf("expected the level override to stick, got %q", cfg.Log.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload delivered")
	}
}
