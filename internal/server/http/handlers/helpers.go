package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/servenow/internal/adapter/cashfree"
	domainErrors "github.com/polkiloo/servenow/internal/domain/errors"
	"github.com/polkiloo/servenow/internal/server/http/dto"
)

// errorStatus maps domain errors to an HTTP status and envelope code.
func errorStatus(err error) (int, string) {
	var tooMany cashfree.TooManyRequestsError
	switch {
	case errors.Is(err, domainErrors.ErrInvalidOrderID):
		return http.StatusBadRequest, dto.CodeInvalidOrderID
	case errors.Is(err, domainErrors.ErrInvalidPaymentStatus):
		return http.StatusBadRequest, dto.CodeInvalidPaymentStatus
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound, dto.CodeOrderNotFound
	case errors.Is(err, domainErrors.ErrPaymentStatusFinal):
		return http.StatusConflict, dto.CodePaymentStatusFinal
	case errors.Is(err, domainErrors.ErrUnauthorized):
		return http.StatusUnauthorized, dto.CodeUnauthorized
	case errors.Is(err, domainErrors.ErrInvalidSignature):
		return http.StatusUnauthorized, dto.CodeInvalidSignature
	case errors.As(err, &tooMany):
		return http.StatusTooManyRequests, ""
	default:
		return http.StatusInternalServerError, dto.CodeInternal
	}
}

// publicMessage hides internal error details from clients.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func setRetryAfter(c *gin.Context, err error) {
	var tooMany cashfree.TooManyRequestsError
	if errors.As(err, &tooMany) && tooMany.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(tooMany.RetryAfter.Seconds())))
	}
}

func writeOrderError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	setRetryAfter(c, err)
	c.JSON(status, dto.OrderEnvelope{Success: false, Error: publicMessage(status, err), Code: code})
}

func prepareStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}

func sendEvent(c *gin.Context, name string, data any) {
	c.SSEvent(name, data)
	c.Writer.Flush()
}
