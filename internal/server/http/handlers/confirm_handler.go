package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/servenow/internal/confirmation"
	"github.com/polkiloo/servenow/internal/server/http/dto"
)

const confirmBuffer = 64

type streamMessage struct {
	name string
	data any
}

// ConfirmHandler hosts confirmation sessions and streams their progress.
type ConfirmHandler struct {
	facade ConfirmationFacade
	logger *slog.Logger
}

// NewConfirmHandler constructs ConfirmHandler.
func NewConfirmHandler(facade ConfirmationFacade, logger *slog.Logger) *ConfirmHandler {
	return &ConfirmHandler{facade: facade, logger: logger}
}

// Confirm handles GET /payment/confirm/:id. The session lives as long as the
// request: a disconnecting client aborts it.
func (h *ConfirmHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()
	messages := make(chan streamMessage, confirmBuffer)
	push := func(name string, data any) {
		select {
		case messages <- streamMessage{name: name, data: data}:
		case <-ctx.Done():
		}
	}

	nav := confirmation.NavigatorFunc(func(target string) {
		push(dto.EventRedirect, dto.RedirectEvent{Target: target})
	})
	session, err := h.facade.NewConfirmation(c.Param("id"), nav, func(e confirmation.Event) {
		if msg, ok := toMessage(e); ok {
			push(msg.name, msg.data)
		}
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}

	go func() {
		defer close(messages)
		out := session.Run(ctx)
		if out.Kind == confirmation.OutcomeAborted && ctx.Err() != nil {
			h.logger.Debug("confirmation client went away", slog.String("order", session.OrderID()))
		}
	}()

	prepareStream(c)
	for msg := range messages {
		if ctx.Err() != nil {
			continue
		}
		sendEvent(c, msg.name, msg.data)
	}
}

func toMessage(e confirmation.Event) (streamMessage, bool) {
	switch e.Type {
	case confirmation.EventState:
		return streamMessage{name: dto.EventState, data: dto.StateEvent{State: string(e.State)}}, true
	case confirmation.EventCountdown:
		return streamMessage{name: dto.EventCountdown, data: dto.CountdownEvent{Remaining: e.Countdown}}, true
	case confirmation.EventOrder:
		if e.Order == nil {
			return streamMessage{}, false
		}
		return streamMessage{name: dto.EventOrder, data: dto.FromOrder(*e.Order)}, true
	case confirmation.EventOutcome:
		if e.Outcome == nil {
			return streamMessage{}, false
		}
		return streamMessage{name: dto.EventOutcome, data: dto.FromOutcome(*e.Outcome)}, true
	}
	return streamMessage{}, false
}
