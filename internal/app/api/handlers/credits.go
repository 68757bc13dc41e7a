package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/consumer"
	"github.com/fatflowers/creditledger/internal/app/service/usage"
	"github.com/fatflowers/creditledger/pkg/response"
	"github.com/fatflowers/creditledger/pkg/types"
)

// CreditReader is the read side of a user's credits.
type CreditReader interface {
	GetBalance(ctx context.Context, userID string) (*usage.Balance, error)
	HasCredits(ctx context.Context, userID string, n int64) (bool, error)
	GetBillingHistory(ctx context.Context, userID string, limit int) ([]usage.HistoryEvent, error)
	GetUsage(ctx context.Context, userID string) (*usage.Usage, error)
}

type CreditSpender interface {
	UseCredit(ctx context.Context, userID string, feature types.FeatureType, featureID string) (*consumer.UseResult, error)
}

type UserQuery struct {
	UserID string `form:"user_id" binding:"required"`
}

type CheckCreditsQuery struct {
	UserID string `form:"user_id" binding:"required"`
	N      int64  `form:"n"`
}

type CheckCreditsResponse struct {
	HasCredits bool `json:"has_credits"`
}

type HistoryQuery struct {
	UserID string `form:"user_id" binding:"required"`
	Limit  int    `form:"limit"`
}

type UseCreditRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	FeatureType string `json:"feature_type" binding:"required"`
	FeatureID   string `json:"feature_id"`
}

// @Summary      Get Credit Balance
// @Description  Returns totals and the per-source breakdown of a user's credits.
// @Tags         Credits
// @Produce      json
// @Param        user_id  query  string  true  "User ID"
// @Success      200  {object}  handlers.RespBalance
// @Router       /api/v1/credits/balance [get]
func ApiGetBalance(reader CreditReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q UserQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := reader.GetBalance(c.Request.Context(), q.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Check Credits
// @Description  Reports whether the user holds at least n active credits (default 1).
// @Tags         Credits
// @Produce      json
// @Param        user_id  query  string  true   "User ID"
// @Param        n        query  int     false  "Required credits"
// @Success      200  {object}  handlers.RespCheckCredits
// @Router       /api/v1/credits/check [get]
func ApiCheckCredits(reader CreditReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q CheckCreditsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		ok, err := reader.HasCredits(c.Request.Context(), q.UserID, q.N)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&CheckCreditsResponse{HasCredits: ok}))
	}
}

// @Summary      Use Credit
// @Description  Consumes one credit for a feature invocation, highest priority first.
// @Tags         Credits
// @Accept       json
// @Produce      json
// @Param        request body handlers.UseCreditRequest true "Consumption"
// @Success      200  {object}  handlers.RespUseCredit
// @Router       /api/v1/credits/use [post]
func ApiUseCredit(spender CreditSpender) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UseCreditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		feature, err := types.ParseFeatureType(req.FeatureType)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := spender.UseCredit(c.Request.Context(), req.UserID, feature, req.FeatureID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Billing History
// @Description  Lists grant, use and expiry events of a user, newest first.
// @Tags         Credits
// @Produce      json
// @Param        user_id  query  string  true   "User ID"
// @Param        limit    query  int     false  "Max events (default 50)"
// @Success      200  {object}  handlers.RespHistory
// @Router       /api/v1/credits/history [get]
func ApiGetBillingHistory(reader CreditReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := reader.GetBillingHistory(c.Request.Context(), q.UserID, q.Limit)
		if err != nil {
			respondError(c, err)
			return
		}
		if res == nil {
			res = []usage.HistoryEvent{}
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Period Usage
// @Description  Returns per-feature usage counters of the current billing period.
// @Tags         Credits
// @Produce      json
// @Param        user_id  query  string  true  "User ID"
// @Success      200  {object}  handlers.RespUsage
// @Router       /api/v1/credits/usage [get]
func ApiGetUsage(reader CreditReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q UserQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := reader.GetUsage(c.Request.Context(), q.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterCreditRoutes(r gin.IRouter, reader CreditReader, spender CreditSpender, scanner CreditScanner) {
	r.GET("/balance", ApiGetBalance(reader))
	r.GET("/check", ApiCheckCredits(reader))
	r.POST("/use", ApiUseCredit(spender))
	r.GET("/history", ApiGetBillingHistory(reader))
	r.GET("/usage", ApiGetUsage(reader))
	r.GET("/list", ApiUserCreditList(scanner))
}
