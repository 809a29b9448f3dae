package main

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/xpbridge/internal/config"
	"github.com/danmuck/xpbridge/internal/headless"
	"github.com/danmuck/xpbridge/internal/mainloop"
	"github.com/danmuck/xpbridge/internal/observability"
	"github.com/danmuck/xpbridge/internal/profiling"
	"github.com/danmuck/xpbridge/internal/server"
	"github.com/danmuck/xpbridge/internal/xpconv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// bridge is the wired daemon: protocol server, apply loop and headless
// engine collaborators.
type bridge struct {
	cfg      config.Config
	srv      *server.Server
	loop     *mainloop.Loop
	renderer *headless.Renderer
	cursor   *headless.Cursor
	pose     *headless.StaticPose
}

func newBridge(cfg config.Config) (*bridge, error) {
	observability.RegisterMetrics()

	sc, err := cfg.ServerConfig()
	if err != nil {
		return nil, err
	}
	profiler := profiling.New(cfg.Profiling, cfg.ProfilingInterval)
	queue := mainloop.NewQueue()
	renderer := headless.NewRenderer(headless.RendererOptions{
		ASTCSupported: cfg.ASTCSupported,
		DumpDir:       cfg.FrameDumpPath,
	})
	cursor := headless.NewCursor()
	pose := headless.NewStaticPose(cfg.HeadsetPose())

	srv, err := server.New(sc, server.Deps{
		Scheduler: queue,
		Profiler:  profiler,
		Converter: xpconv.NewConverter(cfg.ControllerOffset),
		Caches:    server.NewCaches(),
		Poses:     pose,
		Renderer:  renderer,
		Cursor:    cursor,
		Grab:      headless.NoGrab{},
		Formats:   renderer,
	})
	if err != nil {
		return nil, err
	}

	monitor := profiling.NewMonitor(profiler.Throughput(), cfg.ProfilingInterval)
	hooks := []mainloop.Hook{
		func(time.Time) { srv.RefreshPose() },
	}
	if cfg.Profiling {
		hooks = append(hooks,
			func(now time.Time) { profiler.MaybeLog(now) },
			func(now time.Time) {
				if line, ok := monitor.Tick(now); ok {
					log.Info().Str("component", "monitor").Msg(line)
				}
			},
		)
	}

	return &bridge{
		cfg:      cfg,
		srv:      srv,
		loop:     mainloop.NewLoop(queue, cfg.TickInterval, hooks...),
		renderer: renderer,
		cursor:   cursor,
		pose:     pose,
	}, nil
}

func run(ctx context.Context, cfg config.Config) error {
	b, err := newBridge(cfg)
	if err != nil {
		return err
	}
	return b.run(ctx)
}

func (b *bridge) run(ctx context.Context) error {
	if err := b.srv.Initialize(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.loop.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return b.srv.Stop()
	})
	g.Go(func() error {
		err := b.srv.CaptureBasePose(ctx, b.cfg.BasePoseAnchorTimeout, b.cfg.BasePoseSettle)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, server.ErrAnchorUnavailable):
			log.Warn().Msg("headset anchor unavailable, poses stay absolute")
			return nil
		default:
			return err
		}
	})
	if b.cfg.OpsAddr != "" {
		g.Go(func() error {
			return observability.ServeOps(ctx, b.cfg.OpsAddr, observability.NewOpsRouter(b.srv))
		})
	}

	log.Info().
		Str("listen", b.cfg.ListenAddr).
		Str("ops", b.cfg.OpsAddr).
		Str("decoder", b.cfg.DefaultDecoder.String()).
		Msg("xpbridged running")
	err := g.Wait()
	log.Info().Msg("xpbridged stopped")
	return err
}
