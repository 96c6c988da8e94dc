package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/servenow/internal/config"
)

// Module provides operator and webhook authentication primitives via fx.
var Module = fx.Options(
	fx.Provide(newKeyHasher),
	fx.Provide(newOperatorGuard),
	fx.Provide(newWebhookSigner),
)

func newKeyHasher() KeyHasher {
	return NewBcryptHasher(0)
}

type guardParams struct {
	fx.In

	Config *config.Config
	Hasher KeyHasher
}

func newOperatorGuard(p guardParams) *OperatorGuard {
	return NewOperatorGuard(p.Config.OperatorKeyHash, p.Hasher)
}

func newWebhookSigner(cfg *config.Config) *HMACSigner {
	return NewHMACSigner(cfg.CashfreeClientSecret, 0)
}
