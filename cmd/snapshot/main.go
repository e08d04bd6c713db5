// Command snapshot renders the device map without a window and writes each
// frame as a PNG.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ktrzcinx/rtls-app/common"
	"github.com/ktrzcinx/rtls-app/config"
	"github.com/ktrzcinx/rtls-app/render"
	"github.com/ktrzcinx/rtls-app/scenario"
	"github.com/ktrzcinx/rtls-app/viewport"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
)

type options struct {
	configPath string
	outDir     string
	frames     int
	interval   time.Duration
	fit        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML file overriding the built-in defaults")
	flag.StringVar(&opts.outDir, "out", "snapshots", "directory for frame_NNN.png files")
	flag.IntVar(&opts.frames, "frames", 10, "number of frames to render")
	flag.DurationVar(&opts.interval, "interval", 50*time.Millisecond, "wall-clock delay between frames")
	flag.BoolVar(&opts.fit, "fit", true, "fit the view to the devices before every frame")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		boot := common.NewLogger("info", nil)
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := common.NewLogger(cfg.Log.Level, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatal().Err(err).Msg("snapshot")
	}
}

// run renders opts.frames frames. Scenario time advances by tick_ms per frame
// so output does not depend on the wall clock.
func run(ctx context.Context, cfg *config.Config, opts options, log zerolog.Logger) error {
	if opts.frames <= 0 {
		return fmt.Errorf("snapshot: frames must be positive, got %d", opts.frames)
	}
	if opts.interval <= 0 {
		opts.interval = time.Millisecond
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	z := zone.New()
	runner, err := scenario.Load(cfg.Scenario.Script, z, log)
	if err != nil {
		return err
	}
	if err := runner.Setup(); err != nil {
		return err
	}

	icons, errs := render.LoadIconTable(cfg.Devices.IconBuckets)
	for _, err := range errs {
		log.Warn().Err(err).Msg("device icon unavailable; drawing without it")
	}

	surface, err := render.NewGGSurface(cfg.Surface.Width, cfg.Surface.Height, cfg.Surface.FontSize, icons)
	if err != nil {
		return err
	}
	defer surface.Close()

	style := cfg.Style()
	ctrl := viewport.NewController(cfg.ViewportOptions())
	renderer := render.NewRenderer(style, icons, z, log)
	loop := render.NewLoop()

	var (
		frame    int
		frameErr error
	)
	err = loop.Run(ctx, opts.interval, func(time.Time) {
		now := int64(frame * cfg.Scenario.TickMs)
		if err := runner.Tick(now); err != nil {
			frameErr = err
			loop.Stop()
			return
		}
		if opts.fit {
			if minX, minY, maxX, maxY, ok := z.Extent(now); ok {
				ctrl.FitWorld(
					viewport.WorldPoint{X: minX, Y: minY},
					viewport.WorldPoint{X: maxX, Y: maxY},
					float64(cfg.Surface.Width), float64(cfg.Surface.Height), style.DeviceSize*2,
				)
			}
		}

		stats := renderer.Draw(surface, ctrl.State(), now)
		if err := surface.Err(); err != nil {
			frameErr = err
			loop.Stop()
			return
		}
		path := filepath.Join(opts.outDir, fmt.Sprintf("frame_%03d.png", frame))
		if err := writePNG(path, surface); err != nil {
			frameErr = err
			loop.Stop()
			return
		}
		log.Debug().
			Str("path", path).
			Int64("ts", now).
			Int("devices", stats.Devices).
			Int("clamped", stats.Clamped).
			Int("skipped", stats.Skipped).
			Msg("frame written")

		frame++
		if frame >= opts.frames {
			loop.Stop()
		}
	})
	if errors.Is(err, context.Canceled) {
		log.Warn().Int("frames", frame).Msg("interrupted")
		err = nil
	}
	if err != nil {
		return err
	}
	if frameErr != nil {
		return frameErr
	}
	log.Info().Int("frames", frame).Str("dir", opts.outDir).Msg("snapshots written")
	return nil
}

func writePNG(path string, s *render.GGSurface) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.EncodePNG(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: encode %s: %w", path, err)
	}
	return f.Close()
}
