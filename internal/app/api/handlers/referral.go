package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/referral"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/response"
)

type ReferralService interface {
	Redeem(ctx context.Context, code, referredUserID string) (*referral.Redemption, error)
	EnsureCode(ctx context.Context, userID string) (string, error)
	Stats(ctx context.Context, userID string) (*models.ReferralStat, error)
}

type RedeemReferralRequest struct {
	Code   string `json:"code" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

type ReferralCodeResponse struct {
	Code string `json:"code"`
}

// @Summary      Redeem Referral Code
// @Description  Links the user to the code's owner and grants one referral credit to each.
// @Tags         Referral
// @Accept       json
// @Produce      json
// @Param        request body handlers.RedeemReferralRequest true "Redemption"
// @Success      200  {object}  handlers.RespRedemption
// @Router       /api/v1/referral/redeem [post]
func ApiRedeemReferral(svc ReferralService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RedeemReferralRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Redeem(c.Request.Context(), req.Code, req.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Referral Code
// @Description  Returns the user's referral code, assigning one on first call.
// @Tags         Referral
// @Produce      json
// @Param        user_id  query  string  true  "User ID"
// @Success      200  {object}  handlers.RespReferralCode
// @Router       /api/v1/referral/code [get]
func ApiGetReferralCode(svc ReferralService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q UserQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		code, err := svc.EnsureCode(c.Request.Context(), q.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ReferralCodeResponse{Code: code}))
	}
}

// @Summary      Referral Stats
// @Tags         Referral
// @Produce      json
// @Param        user_id  query  string  true  "User ID"
// @Success      200  {object}  handlers.RespReferralStat
// @Router       /api/v1/referral/stats [get]
func ApiGetReferralStats(svc ReferralService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q UserQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		stat, err := svc.Stats(c.Request.Context(), q.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(stat))
	}
}

func RegisterReferralRoutes(r gin.IRouter, svc ReferralService) {
	r.POST("/redeem", ApiRedeemReferral(svc))
	r.GET("/code", ApiGetReferralCode(svc))
	r.GET("/stats", ApiGetReferralStats(svc))
}
