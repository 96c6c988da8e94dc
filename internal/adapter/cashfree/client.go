package cashfree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/metrics"
)

const (
	DefaultAPIVersion = "2023-08-01"

	defaultRetryAfter = 5 * time.Second
)

// ErrOrderNotFound indicates the gateway has no order with this id.
var ErrOrderNotFound = errors.New("gateway order not found")

// TooManyRequestsError represents a rate limiting signal from the gateway.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// Client answers what the gateway knows about an order's payment.
type Client interface {
	Configured() bool
	CheckPayment(ctx context.Context, orderID string) (*model.PaymentCheck, error)
}

// Credentials identify the merchant account.
type Credentials struct {
	ClientID     string
	ClientSecret string
	APIVersion   string
}

// HTTPClient implements Client via the Cashfree PG REST API.
type HTTPClient struct {
	baseURL     *url.URL
	credentials Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type orderResponse struct {
	OrderID          string `json:"order_id"`
	OrderStatus      string `json:"order_status"`
	PaymentSessionID string `json:"payment_session_id"`
}

type paymentResponse struct {
	CFPaymentID   json.Number `json:"cf_payment_id"`
	PaymentStatus string      `json:"payment_status"`
	PaymentTime   string      `json:"payment_time"`
}

// NewHTTPClient creates a gateway client throttled to rps requests per second.
func NewHTTPClient(baseURL string, creds Credentials, rps float64, logger *slog.Logger, m *metrics.Metrics) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("gateway url must be absolute")
	}
	if creds.APIVersion == "" {
		creds.APIVersion = DefaultAPIVersion
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &HTTPClient{
		baseURL:     parsed,
		credentials: creds,
		logger:      logger,
		metrics:     m,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Configured reports whether merchant credentials are present.
func (c *HTTPClient) Configured() bool {
	return c.credentials.ClientID != "" && c.credentials.ClientSecret != ""
}

// CheckPayment maps the gateway order, and its latest payment attempt while the
// order is still active, to a payment status.
func (c *HTTPClient) CheckPayment(ctx context.Context, orderID string) (*model.PaymentCheck, error) {
	var order orderResponse
	if err := c.get(ctx, "order", orderID, &order); err != nil {
		return nil, err
	}

	check := &model.PaymentCheck{
		OrderID:       orderID,
		GatewayStatus: order.OrderStatus,
		Status:        mapOrderStatus(order.OrderStatus),
	}
	if check.Status != model.PaymentStatusPending || !strings.EqualFold(order.OrderStatus, "ACTIVE") {
		return check, nil
	}

	var payments []paymentResponse
	if err := c.get(ctx, "payments", orderID, &payments); err != nil {
		return nil, err
	}
	if latest, ok := latestPayment(payments); ok {
		check.Status = mapPaymentStatus(latest.PaymentStatus)
		check.GatewayStatus = latest.PaymentStatus
		check.PaymentID = latest.CFPaymentID.String()
	}
	return check, nil
}

func (c *HTTPClient) get(ctx context.Context, endpointName, orderID string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := *c.baseURL
	if endpointName == "payments" {
		endpoint.Path = path.Join(endpoint.Path, "/pg/orders/", orderID, "payments")
	} else {
		endpoint.Path = path.Join(endpoint.Path, "/pg/orders/", orderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.credentials.ClientID)
	req.Header.Set("x-client-secret", c.credentials.ClientSecret)
	req.Header.Set("x-api-version", c.credentials.APIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GatewayRequest(endpointName, "error")
		return err
	}
	defer resp.Body.Close()
	c.metrics.GatewayRequest(endpointName, strconv.Itoa(resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode gateway %s: %w", endpointName, err)
		}
		return nil
	case http.StatusNotFound:
		return ErrOrderNotFound
	case http.StatusTooManyRequests:
		return TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("gateway request failed",
			slog.String("endpoint", endpointName),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return fmt.Errorf("gateway error: %s", resp.Status)
	}
}

func mapOrderStatus(status string) model.PaymentStatus {
	switch strings.ToUpper(status) {
	case "PAID":
		return model.PaymentStatusCompleted
	case "EXPIRED", "TERMINATED", "TERMINATION_REQUESTED":
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusPending
	}
}

func mapPaymentStatus(status string) model.PaymentStatus {
	switch strings.ToUpper(status) {
	case "SUCCESS":
		return model.PaymentStatusCompleted
	case "FAILED", "USER_DROPPED", "CANCELLED", "VOID":
		return model.PaymentStatusFailed
	default:
		return model.PaymentStatusPending
	}
}

// latestPayment picks the attempt with the greatest payment_time, falling back
// to response order when times are missing.
func latestPayment(payments []paymentResponse) (paymentResponse, bool) {
	if len(payments) == 0 {
		return paymentResponse{}, false
	}
	sorted := make([]paymentResponse, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return paymentTime(sorted[i]).Before(paymentTime(sorted[j]))
	})
	return sorted[len(sorted)-1], true
}

func paymentTime(p paymentResponse) time.Time {
	t, err := time.Parse(time.RFC3339, p.PaymentTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return defaultRetryAfter
}
