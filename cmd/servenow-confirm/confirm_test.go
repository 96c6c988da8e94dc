package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/servenow/internal/confirmation"
	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/server/http/dto"
	"github.com/polkiloo/servenow/internal/storage/bolt"
)

// fakeDeployment serves the subset of the ServeNow API a session uses.
// Verification answers walk through verified, repeating the last entry.
type fakeDeployment struct {
	mu       sync.Mutex
	status   map[string]model.PaymentStatus
	verified []model.PaymentStatus
	verifies int
	patches  []string
}

func newFakeDeployment(t *testing.T, verified ...model.PaymentStatus) (*fakeDeployment, *httptest.Server) {
	t.Helper()
	d := &fakeDeployment{status: make(map[string]model.PaymentStatus), verified: verified}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		status, ok := d.status[r.PathValue("id")]
		d.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, dto.OrderEnvelope{Error: "Order not found", Code: dto.CodeOrderNotFound})
			return
		}
		writeJSON(w, http.StatusOK, dto.OrderEnvelope{Success: true, Order: &dto.OrderResponse{
			ID:            r.PathValue("id"),
			PaymentStatus: string(status),
		}})
	})
	mux.HandleFunc("PATCH /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req dto.UpdateStatusRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		d.mu.Lock()
		d.patches = append(d.patches, req.PaymentStatus)
		d.mu.Unlock()
		writeJSON(w, http.StatusOK, dto.OrderEnvelope{Success: true, Order: &dto.OrderResponse{
			ID:            r.PathValue("id"),
			PaymentStatus: req.PaymentStatus,
		}})
	})
	mux.HandleFunc("GET /api/orders/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("POST /api/verify-payment", func(w http.ResponseWriter, r *http.Request) {
		var req dto.VerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		d.mu.Lock()
		status := d.verified[min(d.verifies, len(d.verified)-1)]
		d.verifies++
		d.mu.Unlock()
		writeJSON(w, http.StatusOK, dto.VerifyResponse{Success: true, PaymentStatus: string(status)})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDeployment) add(id string, status model.PaymentStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[id] = status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, ctx, strings.NewReader(""), args...)
}

func executeWithInput(t *testing.T, ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetIn(stdin)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

func TestWatchPaidOrder(t *testing.T) {
	d, srv := newFakeDeployment(t, model.PaymentStatusCompleted)
	id := uuid.NewString()
	d.add(id, model.PaymentStatusCompleted)
	state := filepath.Join(t.TempDir(), "confirm.db")

	out, err := execute(t, context.Background(), "watch", id, "--base-url", srv.URL, "--state", state)

	require.NoError(t, err)
	assert.Contains(t, out, "order "+id+": payment completed")
	assert.Contains(t, out, "outcome: success")
	assert.NotContains(t, out, "redirect:")

	_, err = pendingOrder(state)
	assert.ErrorIs(t, err, errNothingPending)
}

func TestWatchFailedPaymentRedirects(t *testing.T) {
	d, srv := newFakeDeployment(t, model.PaymentStatusFailed)
	id := uuid.NewString()
	d.add(id, model.PaymentStatusPending)
	state := filepath.Join(t.TempDir(), "confirm.db")

	out, err := execute(t, context.Background(), "watch", id, "--base-url", srv.URL, "--state", state, "--timeout", "10s")

	require.Error(t, err)
	assert.Equal(t, exitFailed, exitCode(err))
	assert.Contains(t, out, "state: watching")
	assert.Contains(t, out, "redirect: /payment/failure?order_id="+id+"&reason=payment_failed")
	assert.Contains(t, out, "outcome: failure (payment_failed)")

	_, err = pendingOrder(state)
	assert.ErrorIs(t, err, errNothingPending)
}

func TestWatchTimesOutToFallback(t *testing.T) {
	d, srv := newFakeDeployment(t, model.PaymentStatusPending)
	id := uuid.NewString()
	d.add(id, model.PaymentStatusPending)
	state := filepath.Join(t.TempDir(), "confirm.db")

	out, err := execute(t, context.Background(), "watch", id, "--base-url", srv.URL, "--state", state,
		"--timeout", "1s", "--retry-delay", "100ms", "--verbose")

	require.Error(t, err)
	assert.Equal(t, exitFallback, exitCode(err))
	assert.Contains(t, out, "countdown: 1s")
	assert.Contains(t, out, "redirect: /payment/fallback?order_id="+id+"&reason=verification_timeout")

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Contains(t, d.patches, string(model.PaymentStatusVerifying))
}

// enterPresses yields a newline every interval until stopped.
type enterPresses struct {
	interval time.Duration
	stopped  atomic.Bool
}

func (e *enterPresses) Read(p []byte) (int, error) {
	if e.stopped.Load() {
		return 0, io.EOF
	}
	time.Sleep(e.interval)
	p[0] = '\n'
	return 1, nil
}

func TestWatchRecheckOnEnter(t *testing.T) {
	d, srv := newFakeDeployment(t, model.PaymentStatusPending, model.PaymentStatusCompleted)
	id := uuid.NewString()
	d.add(id, model.PaymentStatusPending)
	state := filepath.Join(t.TempDir(), "confirm.db")

	input := &enterPresses{interval: 50 * time.Millisecond}
	defer input.stopped.Store(true)

	// The retry is far beyond the countdown, so only Enter can trigger the second check.
	out, err := executeWithInput(t, context.Background(), input, "watch", id, "--base-url", srv.URL, "--state", state,
		"--timeout", "10s", "--retry-delay", "1m")

	require.NoError(t, err)
	assert.Contains(t, out, "check: started")
	assert.Contains(t, out, "outcome: success")

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.GreaterOrEqual(t, d.verifies, 2)
}

func TestWatchUnknownOrder(t *testing.T) {
	_, srv := newFakeDeployment(t, model.PaymentStatusCompleted)
	state := filepath.Join(t.TempDir(), "confirm.db")

	out, err := execute(t, context.Background(), "watch", uuid.NewString(), "--base-url", srv.URL, "--state", state)

	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
	assert.Equal(t, exitFatal, exitCode(err))
	assert.Contains(t, out, "state: error")
}

func TestWatchRejectsInvalidOrderID(t *testing.T) {
	_, err := execute(t, context.Background(), "watch", "not-an-id", "--state", filepath.Join(t.TempDir(), "confirm.db"))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidOrderID)
}

func TestWatchInterruptedKeepsPendingOrder(t *testing.T) {
	d, srv := newFakeDeployment(t, model.PaymentStatusPending)
	id := uuid.NewString()
	d.add(id, model.PaymentStatusPending)
	state := filepath.Join(t.TempDir(), "confirm.db")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	out, err := execute(t, ctx, "watch", id, "--base-url", srv.URL, "--state", state, "--timeout", "30s")

	require.Error(t, err)
	assert.Equal(t, exitFatal, exitCode(err))
	assert.Contains(t, out, "outcome: aborted")

	pending, err := pendingOrder(state)
	require.NoError(t, err)
	assert.Equal(t, id, pending)
}

func TestResume(t *testing.T) {
	d, srv := newFakeDeployment(t, model.PaymentStatusCompleted)
	id := uuid.NewString()
	d.add(id, model.PaymentStatusCompleted)
	state := filepath.Join(t.TempDir(), "confirm.db")

	_, err := execute(t, context.Background(), "resume", "--base-url", srv.URL, "--state", state)
	assert.ErrorIs(t, err, errNothingPending)

	store, err := bolt.Open(state)
	require.NoError(t, err)
	require.NoError(t, store.Set(confirmation.PendingOrderKey, id))
	require.NoError(t, store.Close())

	out, err := execute(t, context.Background(), "resume", "--base-url", srv.URL, "--state", state)
	require.NoError(t, err)
	assert.Contains(t, out, "resuming order "+id)
	assert.Contains(t, out, "outcome: success")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFatal, exitCode(errors.New("boom")))
	assert.Equal(t, exitFallback, exitCode(&exitError{code: exitFallback, kind: confirmation.OutcomeFallback}))

	assert.NoError(t, outcomeError(confirmation.Outcome{Kind: confirmation.OutcomeNotConfigured}))
	err := outcomeError(confirmation.Outcome{Kind: confirmation.OutcomeError, OrderID: "x", Err: domainErrors.ErrNotFound})
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
}
