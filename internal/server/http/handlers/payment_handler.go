package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/servenow/internal/server/http/dto"
)

const (
	webhookTimestampHeader = "x-webhook-timestamp"
	webhookSignatureHeader = "x-webhook-signature"
	maxWebhookBody         = 1 << 20
)

// PaymentHandler serves verification, gateway webhooks and operator overrides.
type PaymentHandler struct {
	facade   PaymentFacade
	verifier SignatureVerifier
	logger   *slog.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(facade PaymentFacade, verifier SignatureVerifier, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{facade: facade, verifier: verifier, logger: logger}
}

// Verify handles POST /api/verify-payment.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		c.JSON(http.StatusBadRequest, dto.VerifyResponse{Error: "orderId is required", Code: dto.CodeInvalidRequest})
		return
	}

	order, err := h.facade.VerifyPayment(c.Request.Context(), req.OrderID)
	if err != nil {
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("verify payment failed", slog.String("order", req.OrderID), slog.String("error", err.Error()))
		}
		setRetryAfter(c, err)
		c.JSON(status, dto.VerifyResponse{Error: publicMessage(status, err), Code: code})
		return
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{
		Success:       true,
		Order:         dto.OrderPtr(order),
		PaymentStatus: string(order.PaymentStatus),
	})
}

// Webhook handles POST /api/webhooks/cashfree.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	timestamp := c.GetHeader(webhookTimestampHeader)
	if err := h.verifier.Verify(timestamp, body, c.GetHeader(webhookSignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected")
		c.JSON(http.StatusUnauthorized, dto.OrderEnvelope{Error: err.Error(), Code: dto.CodeInvalidSignature})
		return
	}

	var req dto.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, dto.OrderEnvelope{Error: "invalid webhook payload", Code: dto.CodeInvalidRequest})
		return
	}

	order, err := h.facade.HandleWebhook(c.Request.Context(), req.Event())
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderEnvelope{Success: true, Order: dto.OrderPtr(order)})
}

// Override handles POST /api/operator/orders/:id/payment-status.
func (h *PaymentHandler) Override(c *gin.Context) {
	var req dto.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.OrderEnvelope{Error: "invalid request body", Code: dto.CodeInvalidRequest})
		return
	}

	order, err := h.facade.OverridePaymentStatus(c.Request.Context(), c.Param("id"), req.PaymentStatus)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if req.Note != "" {
		h.logger.Info("override note", slog.String("order", order.ID), slog.String("note", req.Note))
	}
	c.JSON(http.StatusOK, dto.OrderEnvelope{Success: true, Order: dto.OrderPtr(order)})
}
