package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/lifecycle"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/app/service/referral"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/response"
)

var nopLogger = zap.NewNop().Sugar()

// codeFor maps service errors to envelope codes.
func codeFor(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return response.APIResponseCodeInsufficientCredits
	case errors.Is(err, ledger.ErrUserNotFound):
		return response.APIResponseCodeUserNotFound
	case errors.Is(err, ledger.ErrSubscriptionNotFound):
		return response.APIResponseCodeSubscriptionMissing
	case errors.Is(err, ledger.ErrClaimConflict):
		return response.APIResponseCodeConflict
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, plan.ErrPlanNotFound),
		errors.Is(err, referral.ErrInvalidReferral),
		errors.Is(err, lifecycle.ErrUnsupportedEvent):
		return response.APIResponseCodeBadRequest
	default:
		return response.APIResponseCodeError
	}
}

// httpStatusFor is used where the caller retries on status, i.e. the webhook.
func httpStatusFor(code response.APIResponseCode) int {
	switch code {
	case response.APIResponseCodeOK:
		return http.StatusOK
	case response.APIResponseCodeBadRequest:
		return http.StatusBadRequest
	case response.APIResponseCodeUserNotFound, response.APIResponseCodeSubscriptionMissing:
		return http.StatusNotFound
	case response.APIResponseCodeConflict:
		return http.StatusConflict
	case response.APIResponseCodeInsufficientCredits:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the envelope with HTTP 200, logging
// infrastructure failures.
func respondError(c *gin.Context, err error) {
	code := codeFor(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, nopLogger).Errorw("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusOK, response.ErrorMsg(code, ""))
		return
	}
	c.JSON(http.StatusOK, response.ErrorMsg(code, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorMsg(response.APIResponseCodeBadRequest, msg))
}
