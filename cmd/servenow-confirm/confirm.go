package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/polkiloo/servenow/internal/adapter/servenow"
	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/logger"
	"github.com/polkiloo/servenow/internal/storage/bolt"
	"github.com/polkiloo/servenow/internal/usecase"
)

var errNothingPending = errors.New("no interrupted confirmation to resume")

func confirm(ctx context.Context, opts *rootOptions, orderID string, stdin io.Reader, stdout, stderr io.Writer) error {
	orderID, err := usecase.NormalizeOrderID(orderID)
	if err != nil {
		return err
	}

	log := logger.NewConsole(stderr, opts.verbose)
	client, err := servenow.New(opts.baseURL, log)
	if err != nil {
		return err
	}
	store, err := bolt.Open(opts.statePath)
	if err != nil {
		return err
	}
	defer store.Close()

	out := &syncWriter{w: stdout}
	defer out.Close()

	session := confirmation.New(orderID, confirmation.Options{
		Orders:     client,
		Verifier:   client,
		Feed:       client,
		Store:      store,
		Logger:     log,
		Timeout:    opts.timeout,
		RetryDelay: opts.retryDelay,
		Navigator: confirmation.NavigatorFunc(func(target string) {
			fmt.Fprintf(out, "redirect: %s\n", target)
		}),
		OnEvent: printer(out, opts.verbose),
	})

	go recheckOnInput(ctx, session, stdin, out)
	return outcomeError(session.Run(ctx))
}

// recheckOnInput asks the session to verify again for every line read from in.
func recheckOnInput(ctx context.Context, session *confirmation.Session, in io.Reader, out io.Writer) {
	if in == nil {
		return
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case <-session.Done():
			return
		default:
		}
		if session.CheckNow(ctx) {
			fmt.Fprintln(out, "check: started")
		} else {
			fmt.Fprintln(out, "check: skipped, a check is already running")
		}
	}
}

// syncWriter serializes writes from the session and input goroutines and
// drops anything written after Close.
type syncWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *syncWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func pendingOrder(statePath string) (string, error) {
	store, err := bolt.Open(statePath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	orderID, ok, err := store.Get(confirmation.PendingOrderKey)
	if err != nil {
		return "", err
	}
	if !ok || orderID == "" {
		return "", errNothingPending
	}
	return orderID, nil
}

// printer writes session events as plain lines. Countdown ticks are only
// shown in verbose mode.
func printer(w io.Writer, verbose bool) func(confirmation.Event) {
	return func(e confirmation.Event) {
		switch e.Type {
		case confirmation.EventState:
			fmt.Fprintf(w, "state: %s\n", e.State)
		case confirmation.EventCountdown:
			if verbose {
				fmt.Fprintf(w, "countdown: %ds\n", e.Countdown)
			}
		case confirmation.EventOrder:
			fmt.Fprintf(w, "order %s: payment %s\n", e.Order.ID, e.Order.PaymentStatus)
		case confirmation.EventOutcome:
			out := e.Outcome
			switch {
			case out.Reason != "":
				fmt.Fprintf(w, "outcome: %s (%s)\n", out.Kind, out.Reason)
			case out.Kind == confirmation.OutcomeAborted:
				fmt.Fprintf(w, "outcome: %s, run `servenow-confirm resume` to continue\n", out.Kind)
			default:
				fmt.Fprintf(w, "outcome: %s\n", out.Kind)
			}
		}
	}
}

func outcomeError(out confirmation.Outcome) error {
	switch out.Kind {
	case confirmation.OutcomeSuccess, confirmation.OutcomeNotConfigured:
		return nil
	case confirmation.OutcomeFailure:
		return &exitError{code: exitFailed, kind: out.Kind}
	case confirmation.OutcomeFallback:
		return &exitError{code: exitFallback, kind: out.Kind}
	case confirmation.OutcomeAborted:
		return &exitError{code: exitFatal, kind: out.Kind}
	}
	if out.Err != nil {
		return fmt.Errorf("confirm order %s: %w", out.OrderID, out.Err)
	}
	return fmt.Errorf("confirm order %s: %s", out.OrderID, out.Kind)
}
