package servenow

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/domain/model"
	"github.com/polkiloo/servenow/internal/server/http/dto"
)

const feedBuffer = 4

// Subscribe opens the order's event stream. The returned subscription's
// channel closes when the stream ends, whether by Unsubscribe or by the server.
func (c *Client) Subscribe(ctx context.Context, id string) (confirmation.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	endpoint := c.endpoint("api", "orders", id, "events")

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open order stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open order stream: unexpected status %d", resp.StatusCode)
	}

	sub := &streamSubscription{
		ch:     make(chan model.Order, feedBuffer),
		cancel: cancel,
	}
	go sub.read(streamCtx, resp.Body, c.logger)
	return sub, nil
}

type streamSubscription struct {
	ch     chan model.Order
	cancel context.CancelFunc
	once   sync.Once
}

func (s *streamSubscription) Updates() <-chan model.Order { return s.ch }

func (s *streamSubscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

func (s *streamSubscription) read(ctx context.Context, body io.ReadCloser, logger *slog.Logger) {
	defer close(s.ch)
	defer body.Close()

	err := readEvents(body, func(name, data string) bool {
		if name != dto.EventOrder {
			return true
		}
		var wire dto.OrderResponse
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			logger.Warn("bad order event", slog.String("error", err.Error()))
			return true
		}
		select {
		case s.ch <- wire.Model():
			return true
		case <-ctx.Done():
			return false
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Warn("order stream ended", slog.String("error", err.Error()))
	}
}

// readEvents parses a text/event-stream body and calls fn for each dispatched
// event until fn returns false or the stream ends.
func readEvents(r io.Reader, fn func(name, data string) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				event := name
				if event == "" {
					event = "message"
				}
				if !fn(event, strings.Join(data, "\n")) {
					return nil
				}
			}
			name, data = "", nil
		case strings.HasPrefix(line, ":"):
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				name = value
			case "data":
				data = append(data, value)
			}
		}
	}
	return scanner.Err()
}
