package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/servenow/internal/server/http/dto"
)

const heartbeatInterval = 15 * time.Second

// OrderHandler manages order endpoints.
type OrderHandler struct {
	facade OrderFacade
	logger *slog.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{facade: facade, logger: logger}
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.facade.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderEnvelope{Success: true, Order: dto.OrderPtr(order)})
}

// UpdateStatus handles PATCH /api/orders/:id.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.OrderEnvelope{Error: "invalid request body", Code: dto.CodeInvalidRequest})
		return
	}

	order, err := h.facade.SetPaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderEnvelope{Success: true, Order: dto.OrderPtr(order)})
}

// Events handles GET /api/orders/:id/events, streaming row updates as they land.
func (h *OrderHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := h.facade.SubscribeOrder(ctx, c.Param("id"))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	defer sub.Unsubscribe()

	prepareStream(c)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	updates := sub.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		case order, ok := <-updates:
			if !ok {
				h.logger.Debug("order feed closed", slog.String("order", c.Param("id")))
				return
			}
			sendEvent(c, dto.EventOrder, dto.FromOrder(order))
		}
	}
}
