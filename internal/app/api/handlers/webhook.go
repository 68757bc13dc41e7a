package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/lifecycle"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/response"
)

type EventHandler interface {
	Handle(ctx context.Context, ev *lifecycle.Event) (*lifecycle.Outcome, error)
}

type WebhookResponse struct {
	Duplicate bool               `json:"duplicate"`
	Outcome   *lifecycle.Outcome `json:"outcome,omitempty"`
}

// @Summary      Payment Webhook
// @Description  Applies a payment gateway event. Replays are acknowledged with duplicate=true; infrastructure failures answer 500 so the gateway retries.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        request body lifecycle.Event true "Gateway event"
// @Success      200  {object}  handlers.RespWebhook
// @Failure      400  {object}  handlers.RespOK
// @Failure      500  {object}  handlers.RespOK
// @Router       /api/v1/webhook/payment [post]
func ApiPaymentWebhook(h EventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ev lifecycle.Event
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorMsg(response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		ctx := c.Request.Context()
		out, err := h.Handle(ctx, &ev)
		switch {
		case errors.Is(err, lifecycle.ErrEventAlreadyProcessed):
			c.JSON(http.StatusOK, response.OKT(&WebhookResponse{Duplicate: true}))
			return
		case err != nil:
			code := codeFor(err)
			msg := err.Error()
			if code == response.APIResponseCodeError {
				logctx.FromGin(c, nopLogger).Errorw("payment webhook failed", "event_id", ev.ID, "err", err)
				msg = ""
			}
			c.JSON(httpStatusFor(code), response.ErrorMsg(code, msg))
			return
		}
		c.JSON(http.StatusOK, response.OKT(&WebhookResponse{Outcome: out}))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h EventHandler) {
	r.POST("/payment", ApiPaymentWebhook(h))
}
