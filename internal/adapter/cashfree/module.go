package cashfree

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/config"
	"github.com/polkiloo/servenow/internal/metrics"
)

// Module exposes the gateway client to the fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(
		p.Config.CashfreeBaseURL,
		Credentials{
			ClientID:     p.Config.CashfreeClientID,
			ClientSecret: p.Config.CashfreeClientSecret,
			APIVersion:   p.Config.CashfreeAPIVersion,
		},
		p.Config.GatewayRateLimit,
		p.Logger,
		p.Metrics,
	)
}
