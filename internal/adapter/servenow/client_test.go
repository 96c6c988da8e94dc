package servenow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/server/http/dto"
)

const orderID = "9b2f7c1e-3a44-4f0e-9d8c-1b2a3c4d5e6f"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, discardLogger())
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api", discardLogger())
	require.Error(t, err)
	_, err = New("http://[::1", discardLogger())
	require.Error(t, err)
}

func TestFetchOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case orderID:
			writeJSON(w, http.StatusOK, dto.OrderEnvelope{Success: true, Order: &dto.OrderResponse{
				ID:            orderID,
				Restaurant:    &dto.RestaurantResponse{Name: "Spice Route"},
				Items:         []dto.OrderItemResponse{{Name: "Dosa", Quantity: 2, Price: 120}},
				TotalAmount:   240,
				PaymentStatus: "verifying",
			}})
		case "broken":
			writeJSON(w, http.StatusInternalServerError, dto.OrderEnvelope{Error: "internal error", Code: dto.CodeInternal})
		default:
			writeJSON(w, http.StatusNotFound, dto.OrderEnvelope{Error: "not found", Code: dto.CodeOrderNotFound})
		}
	})
	client := newTestClient(t, mux)

	order, err := client.FetchOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusVerifying, order.PaymentStatus)
	assert.Equal(t, "Spice Route", order.Restaurant.Name)
	assert.Len(t, order.Items, 1)

	_, err = client.FetchOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)

	_, err = client.FetchOrder(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestFetchOrderNonJSONNotFound(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())
	_, err := client.FetchOrder(context.Background(), orderID)
	assert.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestRewriteStatus(t *testing.T) {
	var got dto.UpdateStatusRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.PaymentStatus == "verifying" {
			writeJSON(w, http.StatusOK, dto.OrderEnvelope{Success: true})
			return
		}
		writeJSON(w, http.StatusConflict, dto.OrderEnvelope{Error: "payment status is final", Code: dto.CodePaymentStatusFinal})
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.RewriteStatus(context.Background(), orderID, model.PaymentStatusVerifying))
	assert.Equal(t, "verifying", got.PaymentStatus)

	err := client.RewriteStatus(context.Background(), orderID, model.PaymentStatusPending)
	assert.ErrorIs(t, err, domainErrors.ErrPaymentStatusFinal)
}

func TestVerify(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/verify-payment", func(w http.ResponseWriter, r *http.Request) {
		var req dto.VerifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.OrderID {
		case orderID:
			writeJSON(w, http.StatusOK, dto.VerifyResponse{Success: true, Order: &dto.OrderResponse{ID: orderID, PaymentStatus: "completed"}, PaymentStatus: "completed"})
		case "status-only":
			writeJSON(w, http.StatusOK, dto.VerifyResponse{Success: true, PaymentStatus: "failed"})
		case "empty":
			writeJSON(w, http.StatusOK, dto.VerifyResponse{Success: true})
		default:
			writeJSON(w, http.StatusTooManyRequests, dto.VerifyResponse{Error: "too many requests"})
		}
	})
	client := newTestClient(t, mux)

	order, err := client.Verify(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, order.PaymentStatus)

	order, err = client.Verify(context.Background(), "status-only")
	require.NoError(t, err)
	assert.Equal(t, "status-only", order.ID)
	assert.Equal(t, model.PaymentStatusFailed, order.PaymentStatus)

	order, err = client.Verify(context.Background(), "empty")
	require.NoError(t, err)
	assert.Nil(t, order)

	_, err = client.Verify(context.Background(), "other")
	assert.EqualError(t, err, "too many requests")
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	client, err := New(srv.URL, discardLogger())
	require.NoError(t, err)
	srv.Close()

	_, err = client.FetchOrder(context.Background(), orderID)
	require.Error(t, err)
	_, err = client.Subscribe(context.Background(), orderID)
	require.Error(t, err)
}

func TestSubscribeDeliversOrderEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "event:state\ndata:{\"state\":\"watching\"}\n\n")
		fmt.Fprintf(w, "event: order\ndata: {\"id\":%q,\"payment_status\":\"completed\"}\n\n", r.PathValue("id"))
		fmt.Fprint(w, "event:order\ndata:not json\n\n")
		flusher.Flush()
	})
	client := newTestClient(t, mux)

	sub, err := client.Subscribe(context.Background(), orderID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	var updates []model.Order
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case order, ok := <-sub.Updates():
			if !ok {
				done = true
				continue
			}
			updates = append(updates, order)
		case <-timeout:
			t.Fatal("stream did not end")
		}
	}
	require.Len(t, updates, 1)
	assert.Equal(t, orderID, updates[0].ID)
	assert.Equal(t, model.PaymentStatusCompleted, updates[0].PaymentStatus)
}

func TestSubscribeUnsubscribeClosesChannel(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	client := newTestClient(t, mux)
	defer close(release)

	sub, err := client.Subscribe(context.Background(), orderID)
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after unsubscribe")
	}
}

func TestSubscribeRejectsErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, dto.OrderEnvelope{Code: dto.CodeInvalidOrderID})
	})
	client := newTestClient(t, mux)

	_, err := client.Subscribe(context.Background(), "bad")
	require.Error(t, err)
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": comment",
		"data: first",
		"data: second",
		"",
		"event: custom",
		"data:x",
		"",
		"event: ignored-without-data",
		"",
		"data: stop",
		"",
		"data: never",
		"",
	}, "\n")

	type event struct{ name, data string }
	var got []event
	err := readEvents(strings.NewReader(stream), func(name, data string) bool {
		got = append(got, event{name, data})
		return data != "stop"
	})
	require.NoError(t, err)
	assert.Equal(t, []event{
		{"message", "first\nsecond"},
		{"custom", "x"},
		{"message", "stop"},
	}, got)
}

func TestEnvelopeError(t *testing.T) {
	assert.ErrorIs(t, envelopeError(dto.CodeInvalidOrderID, ""), domainErrors.ErrInvalidOrderID)
	assert.EqualError(t, envelopeError("", ""), "request failed")
	assert.False(t, errors.Is(envelopeError("OTHER", "x"), domainErrors.ErrNotFound))
}
