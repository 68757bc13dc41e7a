package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/expiration"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/response"
)

type CreditScanner interface {
	ScanCredits(ctx context.Context, req *ledger.ScanCreditsRequest) ([]*models.Credit, int64, error)
}

type CreditStatistics interface {
	GetCreditStatistic(ctx context.Context, req *statistics.CreditStatisticRequest) (*statistics.CreditStatisticResponse, error)
}

type PurchaseGranter interface {
	GrantPurchaseCredit(ctx context.Context, req allocator.PurchaseGrant) (*allocator.GrantResult, error)
}

type ExpirationRunner interface {
	RunOnce(ctx context.Context) (*expiration.Report, error)
}

type ListCreditsResponse struct {
	Items []*models.Credit `json:"items"`
	Total int64            `json:"total"`
}

type GrantPurchaseCreditRequest struct {
	UserID      string  `json:"user_id" binding:"required"`
	ChargeID    string  `json:"charge_id"`
	ValueUSD    float64 `json:"value_usd"`
	Description string  `json:"description"`
	OperatorID  string  `json:"operator_id" binding:"required"`
}

// @Summary      List Credits (Admin)
// @Description  Retrieves a paginated and filterable list of credit records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ScanCreditsRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespListCredits
// @Router       /api/v1/admin/list_credits [post]
func ApiListCredits(scanner CreditScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanCreditsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		items, total, err := scanner.ScanCredits(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		if items == nil {
			items = []*models.Credit{}
		}
		c.JSON(http.StatusOK, response.OKT(&ListCreditsResponse{Items: items, Total: total}))
	}
}

// @Summary      Get Credit Statistics (Admin)
// @Description  Daily grant, use and expiry counts plus active credit and subscription totals.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.CreditStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespCreditStatistic
// @Router       /api/v1/admin/get_credit_statistic [post]
func ApiGetCreditStatistic(svc CreditStatistics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.CreditStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.GetCreditStatistic(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Grant Purchase Credit (Admin)
// @Description  Grants one non-expiring purchase credit to a user.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.GrantPurchaseCreditRequest true "Grant"
// @Success      200  {object}  handlers.RespGrant
// @Router       /api/v1/admin/grant_purchase_credit [post]
func ApiGrantPurchaseCredit(granter PurchaseGranter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantPurchaseCreditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := granter.GrantPurchaseCredit(c.Request.Context(), allocator.PurchaseGrant{
			UserID:      req.UserID,
			ChargeID:    req.ChargeID,
			ValueUSD:    req.ValueUSD,
			Description: req.Description,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		logctx.FromGin(c, nopLogger).Infow("admin granted purchase credit", "user_id", req.UserID, "operator_id", req.OperatorID)
		c.JSON(http.StatusOK, response.OKT(res.Credits))
	}
}

// @Summary      Expire Credits (Admin)
// @Description  Runs one expiration sweep and sends upcoming-expiry warnings.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespExpire
// @Router       /api/v1/admin/expire_credits [post]
func ApiExpireCredits(runner ExpirationRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := runner.RunOnce(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// AdminDeps groups what the admin routes need.
type AdminDeps struct {
	Credits    CreditScanner
	Statistics CreditStatistics
	Granter    PurchaseGranter
	Expiration ExpirationRunner
}

func RegisterAdminRoutes(r gin.IRouter, d AdminDeps) {
	r.POST("/list_credits", ApiListCredits(d.Credits))
	r.POST("/get_credit_statistic", ApiGetCreditStatistic(d.Statistics))
	r.POST("/grant_purchase_credit", ApiGrantPurchaseCredit(d.Granter))
	r.POST("/expire_credits", ApiExpireCredits(d.Expiration))
}
