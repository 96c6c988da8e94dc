package servenow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/polkiloo/servenow/internal/confirmation"
	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/server/http/dto"
)

const requestTimeout = 10 * time.Second

// Client talks to a ServeNow deployment over its public API. It implements
// the ports a confirmation session needs, so a session can run outside the server.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// New creates a client for the deployment at baseURL.
func New(baseURL string, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute")
	}
	return &Client{
		baseURL:      parsed,
		httpClient:   &http.Client{Timeout: requestTimeout},
		streamClient: &http.Client{},
		logger:       logger,
	}, nil
}

// FetchOrder implements confirmation.OrderSource.
func (c *Client) FetchOrder(ctx context.Context, id string) (*model.Order, error) {
	var env dto.OrderEnvelope
	if err := c.do(ctx, http.MethodGet, c.endpoint("api", "orders", id), nil, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Order == nil {
		return nil, envelopeError(env.Code, env.Error)
	}
	order := env.Order.Model()
	return &order, nil
}

// RewriteStatus implements confirmation.OrderSource.
func (c *Client) RewriteStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	var env dto.OrderEnvelope
	body := dto.UpdateStatusRequest{PaymentStatus: string(status)}
	if err := c.do(ctx, http.MethodPatch, c.endpoint("api", "orders", id), body, &env); err != nil {
		return err
	}
	if !env.Success {
		return envelopeError(env.Code, env.Error)
	}
	return nil
}

// Verify implements confirmation.Verifier.
func (c *Client) Verify(ctx context.Context, id string) (*model.Order, error) {
	var resp dto.VerifyResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("api", "verify-payment"), dto.VerifyRequest{OrderID: id}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, envelopeError(resp.Code, resp.Error)
	}
	if resp.Order != nil {
		order := resp.Order.Model()
		return &order, nil
	}
	if resp.PaymentStatus != "" {
		return &model.Order{ID: id, PaymentStatus: model.NormalizePaymentStatus(resp.PaymentStatus)}, nil
	}
	return nil, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL.JoinPath(escaped...).String()
}

// do sends a JSON request and decodes the envelope. Envelopes are decoded for
// error statuses too; only unparseable replies become transport errors.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return domainErrors.ErrNotFound
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, endpoint, resp.StatusCode)
	}
	c.logger.Debug("api call", slog.String("method", method), slog.String("url", endpoint), slog.Int("status", resp.StatusCode))
	return nil
}

func envelopeError(code, message string) error {
	if message == "" {
		message = "request failed"
	}
	switch code {
	case dto.CodeOrderNotFound:
		return fmt.Errorf("%s: %w", message, domainErrors.ErrNotFound)
	case dto.CodeInvalidOrderID:
		return fmt.Errorf("%s: %w", message, domainErrors.ErrInvalidOrderID)
	case dto.CodePaymentStatusFinal:
		return fmt.Errorf("%s: %w", message, domainErrors.ErrPaymentStatusFinal)
	}
	return errors.New(message)
}

var (
	_ confirmation.OrderSource = (*Client)(nil)
	_ confirmation.Verifier    = (*Client)(nil)
	_ confirmation.Feed        = (*Client)(nil)
)
