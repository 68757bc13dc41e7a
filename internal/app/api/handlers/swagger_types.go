package handlers

import (
	"github.com/fatflowers/creditledger/internal/app/service/consumer"
	"github.com/fatflowers/creditledger/internal/app/service/expiration"
	"github.com/fatflowers/creditledger/internal/app/service/referral"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/internal/app/service/usage"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/response"
	"github.com/fatflowers/creditledger/pkg/types"
)

// Envelope types below exist for swagger only; handlers build responses with
// response.OKT.

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespBalance struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    usage.Balance            `json:"data"`
}

type RespCheckCredits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    CheckCreditsResponse     `json:"data"`
}

type RespUseCredit struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    consumer.UseResult       `json:"data"`
}

type RespHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []usage.HistoryEvent     `json:"data"`
}

type RespUsage struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    usage.Usage              `json:"data"`
}

type RespWebhook struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    WebhookResponse          `json:"data"`
}

type RespRedemption struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    referral.Redemption      `json:"data"`
}

type RespReferralCode struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ReferralCodeResponse     `json:"data"`
}

type RespReferralStat struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.ReferralStat      `json:"data"`
}

type RespListCredits struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListCreditsResponse      `json:"data"`
}

type RespCreditStatistic struct {
	Code    response.APIResponseCode           `json:"code"`
	Message string                             `json:"message"`
	Data    statistics.CreditStatisticResponse `json:"data"`
}

type RespGrant struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Credit          `json:"data"`
}

type RespExpire struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    expiration.Report        `json:"data"`
}

type RespPlans struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []types.Plan             `json:"data"`
}
