package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/adapter/cashfree"
	"github.com/polkiloo/servenow/internal/app"
	"github.com/polkiloo/servenow/internal/config"
	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/logger"
	"github.com/polkiloo/servenow/internal/metrics"
	"github.com/polkiloo/servenow/internal/pkg/auth"
	"github.com/polkiloo/servenow/internal/realtime"
	"github.com/polkiloo/servenow/internal/server/http/handlers"
	"github.com/polkiloo/servenow/internal/server/http/middleware"
	"github.com/polkiloo/servenow/internal/server/http/router"
	"github.com/polkiloo/servenow/internal/storage/postgres"
	"github.com/polkiloo/servenow/internal/usecase"
	"github.com/polkiloo/servenow/internal/worker"
)

// Module composes the service graph. Extra options are appended last so
// callers can fx.Replace any provided value.
func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		postgres.Module,
		cashfree.Module,
		usecase.Module,
		realtime.Module,
		bindings,
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}

var bindings = fx.Provide(
	func(s *postgres.Storage) app.HealthChecker { return s },
	func(h *realtime.Hub) confirmation.Feed { return h },
	func(f *app.ServeNowFacade) handlers.ServeNowFacade { return f },
	func(f *app.ServeNowFacade) worker.SweepFacade { return f },
	func(g *auth.OperatorGuard) middleware.KeyVerifier { return g },
	func(s *auth.HMACSigner) handlers.SignatureVerifier { return s },
)
