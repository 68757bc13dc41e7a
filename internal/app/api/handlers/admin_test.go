package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/expiration"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/referral"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/response"
	"github.com/fatflowers/creditledger/pkg/types"
)

type stubAdmin struct {
	grant   allocator.PurchaseGrant
	statReq *statistics.CreditStatisticRequest
	swept   bool
}

func (s *stubAdmin) ScanCredits(_ context.Context, req *ledger.ScanCreditsRequest) ([]*models.Credit, int64, error) {
	return []*models.Credit{{ID: "c1", UserID: "u1"}}, 7, nil
}

func (s *stubAdmin) GetCreditStatistic(_ context.Context, req *statistics.CreditStatisticRequest) (*statistics.CreditStatisticResponse, error) {
	s.statReq = req
	return &statistics.CreditStatisticResponse{DataItems: map[statistics.StatisticType][]statistics.CreditStatisticResponseDataItem{
		statistics.StatisticTypeActiveCreditCount: {{Label: "purchase", Value: 2}},
	}}, nil
}

func (s *stubAdmin) GrantPurchaseCredit(_ context.Context, req allocator.PurchaseGrant) (*allocator.GrantResult, error) {
	s.grant = req
	return &allocator.GrantResult{Source: types.CreditSourcePurchase, Credits: []*models.Credit{{ID: "c9", UserID: req.UserID}}}, nil
}

func (s *stubAdmin) RunOnce(_ context.Context) (*expiration.Report, error) {
	s.swept = true
	return &expiration.Report{Expired: 3, WarnedUsers: 1}, nil
}

func newAdminRouter(stub *stubAdmin) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), AdminDeps{Credits: stub, Statistics: stub, Granter: stub, Expiration: stub})
	return r
}

func TestRegisterAdminRoutes_RegistersEndpoints(t *testing.T) {
	routes := newAdminRouter(&stubAdmin{}).Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("POST /api/v1/admin/list_credits"))
	require.True(t, contains("POST /api/v1/admin/get_credit_statistic"))
	require.True(t, contains("POST /api/v1/admin/grant_purchase_credit"))
	require.True(t, contains("POST /api/v1/admin/expire_credits"))
}

func TestApiListCredits(t *testing.T) {
	_, env := serve(t, newAdminRouter(&stubAdmin{}), http.MethodPost, "/api/v1/admin/list_credits",
		map[string]any{"filters": []map[string]any{{"field": "user_id", "operator": "eq", "values": []string{"u1"}}}, "size": 10})

	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Contains(t, string(env.Data), `"total":7`)
}

func TestApiGetCreditStatistic(t *testing.T) {
	stub := &stubAdmin{}
	_, env := serve(t, newAdminRouter(stub), http.MethodPost, "/api/v1/admin/get_credit_statistic",
		map[string]any{"data_items": []map[string]any{{"id": "active_credit_count"}}})

	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	require.Len(t, stub.statReq.DataItems, 1)
	assert.Equal(t, statistics.StatisticTypeActiveCreditCount, stub.statReq.DataItems[0].ID)
	assert.JSONEq(t, `{"data_items":{"active_credit_count":[{"label":"purchase","value":2}]}}`, string(env.Data))
}

func TestApiGrantPurchaseCredit(t *testing.T) {
	stub := &stubAdmin{}
	_, env := serve(t, newAdminRouter(stub), http.MethodPost, "/api/v1/admin/grant_purchase_credit",
		map[string]any{"user_id": "u1", "charge_id": "ch_1", "value_usd": 10, "operator_id": "ops"})

	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Equal(t, allocator.PurchaseGrant{UserID: "u1", ChargeID: "ch_1", ValueUSD: 10}, stub.grant)

	_, env = serve(t, newAdminRouter(stub), http.MethodPost, "/api/v1/admin/grant_purchase_credit", map[string]any{"user_id": "u1"})
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestApiExpireCredits(t *testing.T) {
	stub := &stubAdmin{}
	_, env := serve(t, newAdminRouter(stub), http.MethodPost, "/api/v1/admin/expire_credits", nil)

	assert.True(t, stub.swept)
	assert.JSONEq(t, `{"expired":3,"warned_users":1}`, string(env.Data))
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, response.APIResponseCodeBadRequest, codeFor(referral.ErrInvalidReferral))
	assert.Equal(t, response.APIResponseCodeConflict, codeFor(ledger.ErrClaimConflict))
	assert.Equal(t, response.APIResponseCodeError, codeFor(context.DeadlineExceeded))
}
