package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/ktrzcinx/rtls-app/common"
	"github.com/ktrzcinx/rtls-app/config"
	"github.com/ktrzcinx/rtls-app/httpapi"
	"github.com/ktrzcinx/rtls-app/metrics"
	"github.com/ktrzcinx/rtls-app/render"
	"github.com/ktrzcinx/rtls-app/scenario"
	"github.com/ktrzcinx/rtls-app/zone"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "YAML file overriding the built-in defaults; watched for changes")
	logLevel := flag.String("log-level", "", "override log.level from the config")
	debugDevice := flag.Bool("debug-device", false, "log the first device's trace after the scenario setup")
	noScenario := flag.Bool("no-scenario", false, "start with an empty zone and rely on the HTTP API")
	flag.Parse()

	boot := common.NewLogger("info", nil)
	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger := common.NewLogger(cfg.Log.Level, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	clock := func() int64 { return time.Since(start).Milliseconds() }

	m := metrics.New()
	z := zone.New()
	ingest := meteredZone{Zone: z, metrics: m}

	var runner *scenario.Runner
	if !*noScenario && cfg.Scenario.Script != "" {
		runner, err = scenario.Load(cfg.Scenario.Script, ingest, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("script", cfg.Scenario.Script).Msg("load scenario")
		}
		if err := runner.Setup(); err != nil {
			logger.Fatal().Err(err).Str("script", cfg.Scenario.Script).Msg("scenario setup")
		}
		st := runner.Stats()
		logger.Info().
			Int("devices", st.Devices).
			Int("measurements", st.Measurements).
			Int("rejected", st.Rejected).
			Msg("scenario ready")
	}
	if *debugDevice {
		logDeviceTrace(logger, z)
	}

	if cfg.HTTP.Addr != "" {
		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.HTTP.Addr).Msg("listen")
		}
		handler := httpapi.NewHandler(logger, ingest, m, clock)
		go func() {
			if err := httpapi.Serve(ctx, ln, handler.Router(), logger); err != nil {
				logger.Error().Err(err).Msg("http api stopped")
			}
		}()
	}

	reloads := make(chan *config.Config, 1)
	if *configPath != "" {
		w, err := config.NewWatcher(*configPath)
		if err != nil {
			logger.Warn().Err(err).Msg("config watcher unavailable; live reload disabled")
		} else {
			defer w.Close()
			go watchConfig(ctx, w, *configPath, *logLevel, reloads, logger)
		}
	}

	icons, errs := render.LoadIconTable(cfg.Devices.IconBuckets)
	for _, err := range errs {
		logger.Warn().Err(err).Msg("device icon unavailable; drawing without it")
	}

	game, err := NewGame(GameOptions{
		Config:   cfg,
		Log:      logger,
		Zone:     z,
		Scenario: runner,
		Metrics:  m,
		Icons:    icons,
		Reloads:  reloads,
		Clock:    clock,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create game")
	}
	go func() {
		<-ctx.Done()
		game.Stop()
	}()

	ebiten.SetWindowSize(cfg.Surface.Width, cfg.Surface.Height)
	ebiten.SetWindowTitle("rtls-app")
	ebiten.SetScreenClearedEveryFrame(false)
	applyLoopSettings(cfg.Loop)

	if err := ebiten.RunGame(game); err != nil {
		logger.Fatal().Err(err).Msg("run")
	}
	logger.Info().Msg("bye")
}

// watchConfig reloads path on every change and hands valid configs to the
// game. Invalid files are logged and ignored.
func watchConfig(ctx context.Context, w *config.Watcher, path, levelOverride string, out chan *config.Config, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher")
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			cfg, err := config.Load(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("config reload rejected")
				continue
			}
			if levelOverride != "" {
				cfg.Log.Level = levelOverride
			}
			// Only the newest config matters.
			select {
			case <-out:
			default:
			}
			out <- cfg
		}
	}
}

func logDeviceTrace(log zerolog.Logger, z *zone.Zone) {
	h, err := z.DeviceHandle(0)
	if err != nil {
		log.Warn().Err(err).Msg("no device to debug")
		return
	}
	snap, err := z.Serialize(h)
	if err != nil {
		log.Warn().Err(err).Msg("serialize device")
		return
	}
	log.Info().Interface("device", snap).Msg("device trace")
}
