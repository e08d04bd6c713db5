package main

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/ktrzcinx/rtls-app/common"
	"github.com/ktrzcinx/rtls-app/config"
	"github.com/ktrzcinx/rtls-app/metrics"
	"github.com/ktrzcinx/rtls-app/render"
	"github.com/ktrzcinx/rtls-app/scenario"
	"github.com/ktrzcinx/rtls-app/viewport"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
)

// frameInput is one update's worth of user input.
type frameInput struct {
	cursor   viewport.ScreenPoint
	wheelY   float64
	panStart bool
	panHeld  bool
	panEnd   bool

	reset        bool
	fit          bool
	toggleCoords bool
	quit         bool
}

func readInput() frameInput {
	cx, cy := ebiten.CursorPosition()
	_, wy := ebiten.Wheel()
	in := frameInput{
		cursor:       viewport.ScreenPoint{X: float64(cx), Y: float64(cy)},
		wheelY:       wy,
		reset:        inpututil.IsKeyJustPressed(ebiten.KeyR),
		fit:          inpututil.IsKeyJustPressed(ebiten.KeyF),
		toggleCoords: inpututil.IsKeyJustPressed(ebiten.KeyC),
		quit:         inpututil.IsKeyJustPressed(ebiten.KeyEscape),
	}

	overHUD := cy < hudHeight
	in.panStart = inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonMiddle) ||
		(inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) && !overHUD)
	in.panHeld = ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle) ||
		ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	in.panEnd = inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonMiddle) ||
		inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft)
	return in
}

type GameOptions struct {
	Config   *config.Config
	Log      zerolog.Logger
	Zone     *zone.Zone
	Scenario *scenario.Runner
	Metrics  *metrics.Metrics
	Icons    *render.IconTable
	// Reloads delivers validated configs from the file watcher.
	Reloads <-chan *config.Config
	Clock   func() int64
}

type Game struct {
	cfg      *config.Config
	log      zerolog.Logger
	ctrl     *viewport.Controller
	renderer *render.Renderer
	surface  *render.EbitenSurface
	loop     *render.Loop
	hud      *hud
	readout  *cursorReadout
	// applyLoop pushes loop settings to the host window.
	applyLoop func(config.LoopConfig)

	zone     *zone.Zone
	scenario *scenario.Runner
	metrics  *metrics.Metrics
	reloads  <-chan *config.Config
	clock    func() int64
	nextTick int64

	lastCursor viewport.ScreenPoint
	width      float64
	height     float64
}

func NewGame(opts GameOptions) (*Game, error) {
	face, err := render.NewEbitenFace(opts.Config.Surface.FontSize)
	if err != nil {
		return nil, err
	}

	g := newGame(opts)
	g.surface = render.NewEbitenSurface(face, opts.Icons)
	g.hud = newHUD(hudActions{
		Reset:        g.ctrl.Reset,
		Fit:          g.fitWorld,
		ToggleCoords: g.toggleCoords,
	})
	g.hud.SetCoords(g.renderer.Style().ShowCoords)
	return g, nil
}

// newGame wires everything that does not need a graphics context.
func newGame(opts GameOptions) *Game {
	clock := opts.Clock
	if clock == nil {
		start := time.Now()
		clock = func() int64 { return time.Since(start).Milliseconds() }
	}
	cfg := opts.Config

	// A nil *zone.Zone inside the interface would defeat the renderer's
	// nil check.
	var source render.PositionSource
	if opts.Zone != nil {
		source = opts.Zone
	}
	renderer := render.NewRenderer(cfg.Style(), opts.Icons, source, opts.Log)
	readout := &cursorReadout{}
	renderer.AddPass(readout)

	return &Game{
		cfg:       cfg,
		log:       opts.Log,
		ctrl:      viewport.NewController(cfg.ViewportOptions()),
		renderer:  renderer,
		loop:      render.NewLoop(),
		readout:   readout,
		applyLoop: applyLoopSettings,
		zone:      opts.Zone,
		scenario:  opts.Scenario,
		metrics:   opts.Metrics,
		reloads:   opts.Reloads,
		clock:     clock,
		width:     float64(cfg.Surface.Width),
		height:    float64(cfg.Surface.Height),
	}
}

// applyLoopSettings sets the tick rate and whether ebiten keeps running the
// game while the window is in the background.
func applyLoopSettings(lc config.LoopConfig) {
	ebiten.SetTPS(lc.TPS)
	ebiten.SetRunnableOnUnfocused(!lc.PauseWhenUnfocused)
}

// Stop ends the game at the next update.
func (g *Game) Stop() {
	g.loop.Stop()
}

func (g *Game) Update() error {
	g.applyReloads()
	g.loop.SetPaused(g.cfg.Loop.PauseWhenUnfocused && !ebiten.IsFocused())

	running := g.loop.Tick(func() {
		g.hud.Update()
		g.handleInput(readInput())
		g.tickScenario(g.clock())
	})
	if !running {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) handleInput(in frameInput) {
	g.readout.track(in.cursor, g.mapArea())

	if in.wheelY != 0 {
		g.ctrl.ZoomAt(in.cursor, in.wheelY)
	}

	if in.panStart {
		g.ctrl.BeginPan()
		g.lastCursor = in.cursor
	}
	if g.ctrl.State().Panning && in.panHeld {
		g.ctrl.PanBy(in.cursor.Sub(g.lastCursor))
		g.lastCursor = in.cursor
	}
	if in.panEnd && !in.panHeld {
		g.ctrl.EndPan()
	}

	if in.reset {
		g.ctrl.Reset()
	}
	if in.fit {
		g.fitWorld()
	}
	if in.toggleCoords {
		g.toggleCoords()
	}
	if in.quit {
		g.loop.Stop()
	}
}

func (g *Game) fitWorld() {
	if g.zone == nil {
		return
	}
	minX, minY, maxX, maxY, ok := g.zone.Extent(g.clock())
	if !ok {
		return
	}
	padding := g.renderer.Style().DeviceSize * 2
	g.ctrl.FitWorldInto(
		viewport.WorldPoint{X: minX, Y: minY},
		viewport.WorldPoint{X: maxX, Y: maxY},
		g.mapArea(), padding,
	)
}

// mapArea is the part of the surface not covered by the toolbar.
func (g *Game) mapArea() viewport.ScreenRect {
	return viewport.ScreenRect{
		Min: viewport.ScreenPoint{Y: hudHeight},
		Max: viewport.ScreenPoint{X: g.width, Y: g.height},
	}
}

func (g *Game) toggleCoords() {
	st := g.renderer.Style()
	st.ShowCoords = !st.ShowCoords
	g.renderer.SetStyle(st)
	g.hud.SetCoords(st.ShowCoords)
}

func (g *Game) tickScenario(now int64) {
	if g.scenario == nil || now < g.nextTick {
		return
	}
	g.nextTick = now + int64(g.cfg.Scenario.TickMs)
	if err := g.scenario.Tick(now); err != nil {
		g.log.Error().Err(err).Msg("scenario tick failed; scenario stopped")
		g.scenario = nil
	}
}

func (g *Game) applyReloads() {
	for {
		select {
		case cfg, ok := <-g.reloads:
			if !ok {
				g.reloads = nil
				return
			}
			g.applyConfig(cfg)
		default:
			return
		}
	}
}

// applyConfig takes over everything a running window can change. The
// surface size is fixed once the window exists.
func (g *Game) applyConfig(cfg *config.Config) {
	if cfg.Surface.Width != g.cfg.Surface.Width || cfg.Surface.Height != g.cfg.Surface.Height {
		g.log.Warn().
			Int("width", cfg.Surface.Width).
			Int("height", cfg.Surface.Height).
			Msg("surface size changes need a restart")
		cfg.Surface.Width, cfg.Surface.Height = g.cfg.Surface.Width, g.cfg.Surface.Height
	}

	opts := cfg.ViewportOptions()
	g.ctrl.SetZoomBounds(opts.MinZoom, opts.MaxZoom)
	g.ctrl.SetDefaults(opts.DefaultZoom, opts.DefaultOffset, opts.ZoomStep)

	st := cfg.Style()
	st.ShowCoords = g.renderer.Style().ShowCoords
	if cfg.Devices.ShowCoords != g.cfg.Devices.ShowCoords {
		st.ShowCoords = cfg.Devices.ShowCoords
	}
	g.renderer.SetStyle(st)
	g.hud.SetCoords(st.ShowCoords)

	if cfg.Devices.IconBuckets != g.cfg.Devices.IconBuckets {
		g.log.Warn().
			Int("icon_buckets", cfg.Devices.IconBuckets).
			Msg("icon bucket changes need a restart")
		cfg.Devices.IconBuckets = g.cfg.Devices.IconBuckets
	}
	if cfg.Loop != g.cfg.Loop {
		g.applyLoop(cfg.Loop)
	}

	g.log = g.log.Level(common.ParseLevel(cfg.Log.Level))
	g.cfg = cfg
	g.log.Info().Msg("config reloaded")
}

// Draw leaves the screen untouched while the loop is paused. The screen is
// not cleared between frames, so the last map stays visible.
func (g *Game) Draw(screen *ebiten.Image) {
	g.surface.Begin(screen)
	if _, ok := g.renderFrame(g.surface); !ok {
		return
	}
	g.hud.Draw(screen)
}

// renderFrame draws the map onto s and records frame metrics. It reports
// false, drawing nothing, while the loop is paused.
func (g *Game) renderFrame(s render.Surface) (render.FrameStats, bool) {
	if g.loop.Paused() {
		return render.FrameStats{}, false
	}
	start := time.Now()
	stats := g.renderer.Draw(s, g.ctrl.State(), g.clock())
	g.metrics.ObserveFrame(stats.Devices, stats.Clamped, stats.Skipped, time.Since(start))

	zoom := g.ctrl.State().Zoom
	g.metrics.SetZoom(zoom)
	g.hud.SetStatus(zoom, stats.Devices, stats.Clamped)
	return stats, true
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return g.width, g.height
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
