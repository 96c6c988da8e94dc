package realtime

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/config"
	"github.com/polkiloo/servenow/internal/metrics"
)

// Module provides the order update hub and its database listener.
var Module = fx.Provide(
	NewHub,
	newListenerFromConfig,
)

type listenerParams struct {
	fx.In

	Config  *config.Config
	Hub     *Hub
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func newListenerFromConfig(p listenerParams) *Listener {
	return NewListener(p.Config.DatabaseURI, p.Hub, p.Logger, p.Metrics)
}
