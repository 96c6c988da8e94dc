package router

import "go.uber.org/fx"

// Module provides the gin engine serving the public, operator and streaming routes.
var Module = fx.Provide(Setup)
