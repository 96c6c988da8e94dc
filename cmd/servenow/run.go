package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

// service is the part of *fx.App the run loop depends on.
type service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Done() <-chan os.Signal
}

// run starts the service, blocks until ctx is cancelled or the service asks
// to shut down, then stops it. It returns the process exit code.
func run(ctx context.Context, app service, stderr io.Writer) int {
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "failed to start servenow: %v\n", err)
		return 1
	}

	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	if err := app.Stop(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(stderr, "failed to stop servenow: %v\n", err)
		return 1
	}
	return 0
}
