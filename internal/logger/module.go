package logger

import (
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// Module provides the service logger and routes fx events through it.
var Module = fx.Options(
	fx.Provide(New),
	fx.WithLogger(eventLogger),
)

func eventLogger(l *slog.Logger) fxevent.Logger {
	return &fxevent.SlogLogger{Logger: l.With(slog.String("component", "fx"))}
}
