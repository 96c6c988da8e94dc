package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/config"
	"github.com/polkiloo/servenow/internal/metrics"
	"github.com/polkiloo/servenow/internal/realtime"
	"github.com/polkiloo/servenow/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewServeNowFacade,
		newHTTPServer,
		newSweeper,
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

// newHTTPServer cancels request contexts when shutdown begins so open event
// streams end instead of holding Shutdown until its deadline.
func newHTTPServer(p serverParams) *http.Server {
	streams, cancel := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:        p.Config.RunAddress,
		Handler:     p.Router,
		BaseContext: func(net.Listener) context.Context { return streams },
	}
	server.RegisterOnShutdown(cancel)
	return server
}

type sweeperParams struct {
	fx.In

	Facade  worker.SweepFacade
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func newSweeper(p sweeperParams) *worker.Sweeper {
	return worker.NewSweeper(
		p.Facade,
		p.Config.SweepInterval,
		p.Config.SweepBatchSize,
		p.Config.WorkerPoolSize,
		p.Logger,
		p.Metrics,
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Sweeper    *worker.Sweeper
	Listener   *realtime.Listener
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting servenow", slog.String("addr", p.Server.Addr))
			// The start context expires once startup completes.
			runCtx := context.WithoutCancel(ctx)
			p.Listener.Start(runCtx)
			p.Sweeper.Start(runCtx)
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Sweeper.Stop()
			p.Listener.Stop()

			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("servenow stopped")
			return nil
		},
	})
}
