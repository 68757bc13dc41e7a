package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/response"
	"github.com/fatflowers/creditledger/pkg/types"
)

// @Summary      List User Credits
// @Description  Pages through one user's credit records, newest first by default.
// @Tags         Credits
// @Produce      json
// @Param        user_id     query  string  true   "User ID"
// @Param        status      query  string  false  "active, used or expired"
// @Param        from        query  int     false  "Offset"
// @Param        size        query  int     false  "Page size (default 100)"
// @Param        sort_by     query  string  false  "created_at, updated_at, expires_at, used_at or priority"
// @Param        sort_order  query  string  false  "asc or desc"
// @Success      200  {object}  handlers.RespListCredits
// @Router       /api/v1/credits/list [get]
func ApiUserCreditList(scanner CreditScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			badRequest(c, "missing user_id")
			return
		}
		from := 0
		if v := c.Query("from"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				from = n
			}
		}
		size := 100
		if v := c.Query("size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				size = n
			} else {
				badRequest(c, "invalid size")
				return
			}
		}
		sortOrder := c.Query("sort_order")
		if sortOrder != "asc" && sortOrder != "desc" {
			sortOrder = "desc"
		}

		filters := []*types.CommonFilter{{Field: "user_id", Operator: types.CommonFilterOperatorEq, Values: []any{userID}}}
		if status := c.Query("status"); status != "" {
			filters = append(filters, &types.CommonFilter{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{status}})
		}
		items, total, err := scanner.ScanCredits(c.Request.Context(), &ledger.ScanCreditsRequest{
			Filters:   filters,
			From:      from,
			Size:      size,
			SortBy:    c.Query("sort_by"),
			SortOrder: sortOrder,
		})
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
