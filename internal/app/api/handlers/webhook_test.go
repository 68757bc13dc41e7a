package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/lifecycle"
	"github.com/fatflowers/creditledger/pkg/response"
)

type stubEvents struct {
	err error
	got *lifecycle.Event
}

func (s *stubEvents) Handle(_ context.Context, ev *lifecycle.Event) (*lifecycle.Outcome, error) {
	s.got = ev
	if s.err != nil {
		return nil, s.err
	}
	return &lifecycle.Outcome{EventID: ev.ID, Type: ev.Type, UserID: ev.UserID, Granted: 1}, nil
}

func newWebhookRouter(stub *stubEvents) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhook"), stub)
	return r
}

func checkout(id string) map[string]any {
	return map[string]any{"id": id, "type": "checkout_completed", "mode": "one_time", "user_id": "u1", "amount_paid_usd": 9.5}
}

func TestApiPaymentWebhook_Handled(t *testing.T) {
	stub := &stubEvents{}
	w, env := serve(t, newWebhookRouter(stub), http.MethodPost, "/api/v1/webhook/payment", checkout("evt_1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Equal(t, 9.5, stub.got.AmountPaidUSD)
	assert.Contains(t, string(env.Data), `"duplicate":false`)
	assert.Contains(t, string(env.Data), `"granted":1`)
}

func TestApiPaymentWebhook_Statuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   response.APIResponseCode
	}{
		{"duplicate", lifecycle.ErrEventAlreadyProcessed, http.StatusOK, response.APIResponseCodeOK},
		{"invalid", ledger.InvalidArgument("bad"), http.StatusBadRequest, response.APIResponseCodeBadRequest},
		{"subscription missing", ledger.ErrSubscriptionNotFound, http.StatusNotFound, response.APIResponseCodeSubscriptionMissing},
		{"user missing", ledger.ErrUserNotFound, http.StatusNotFound, response.APIResponseCodeUserNotFound},
		{"infra", fmt.Errorf("save: %w", ledger.ErrLedgerInfrastructure), http.StatusInternalServerError, response.APIResponseCodeError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := serve(t, newWebhookRouter(&stubEvents{err: tc.err}), http.MethodPost, "/api/v1/webhook/payment", checkout("evt_1"))
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, env.Code)
		})
	}
}

func TestApiPaymentWebhook_DuplicateFlag(t *testing.T) {
	_, env := serve(t, newWebhookRouter(&stubEvents{err: lifecycle.ErrEventAlreadyProcessed}), http.MethodPost, "/api/v1/webhook/payment", checkout("evt_1"))
	assert.JSONEq(t, `{"duplicate":true}`, string(env.Data))
}

func TestApiPaymentWebhook_MissingID(t *testing.T) {
	w, env := serve(t, newWebhookRouter(&stubEvents{}), http.MethodPost, "/api/v1/webhook/payment", map[string]any{"type": "checkout_completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}
