package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/polkiloo/servenow/internal/confirmation"
)

const (
	exitOK       = 0
	exitFatal    = 1
	exitFailed   = 2
	exitFallback = 3
)

// exitError carries a non-zero exit code for an outcome that was already
// reported on stdout.
type exitError struct {
	code int
	kind confirmation.OutcomeKind
}

func (e *exitError) Error() string { return fmt.Sprintf("confirmation ended with %s", e.kind) }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitFatal
}

type rootOptions struct {
	verbose    bool
	statePath  string
	baseURL    string
	timeout    time.Duration
	retryDelay time.Duration
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "servenow-confirm",
		Short: "Watch a ServeNow order until its payment is confirmed",
		Long: `servenow-confirm runs the payment confirmation flow against a ServeNow
deployment from the terminal. It follows the order through its realtime
event stream, asks the deployment to verify the payment with the gateway,
and exits once the payment settles or the countdown runs out. Press Enter
while watching to ask for another verification.

Exit codes: 0 paid or gateway not configured, 2 payment failed,
3 confirmation timed out, 1 any other error.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.StringVar(&opts.statePath, "state", defaultStatePath(), "file that remembers the order being watched")
	flags.StringVar(&opts.baseURL, "base-url", envOr("SERVENOW_URL", "http://localhost:8080"), "ServeNow deployment URL")
	flags.DurationVar(&opts.timeout, "timeout", confirmation.DefaultTimeout, "countdown before falling back")
	flags.DurationVar(&opts.retryDelay, "retry-delay", confirmation.DefaultRetryDelay, "delay before the second verification")

	root.AddCommand(newWatchCmd(opts), newResumeCmd(opts))
	return root
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ORDER_ID",
		Short: "Confirm the payment of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return confirm(cmd.Context(), opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func newResumeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the confirmation that was interrupted last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := pendingOrder(opts.statePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resuming order %s\n", orderID)
			return confirm(cmd.Context(), opts, orderID, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".servenow", "confirm.db")
	}
	return filepath.Join(home, ".servenow", "confirm.db")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
