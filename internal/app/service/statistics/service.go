package statistics

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/types"
)

type StatisticType string

const (
	// Daily series, labelled by source type
	StatisticTypeDailyCreditsGranted    StatisticType = "daily_credits_granted"
	StatisticTypeDailyCreditsUsed       StatisticType = "daily_credits_used"
	StatisticTypeDailyCreditsExpired    StatisticType = "daily_credits_expired"
	StatisticTypeDailyCreditsSuperseded StatisticType = "daily_credits_superseded"

	// Point in time
	StatisticTypeActiveCreditCount       StatisticType = "active_credit_count"
	StatisticTypeActiveSubscriptionCount StatisticType = "active_subscription_count"
)

// Filters that only make sense for some statistics.
type CreditStatisticFilterType string

const (
	CreditStatisticFilterTypeSourceType CreditStatisticFilterType = "source_type"
	CreditStatisticFilterTypePlanID     CreditStatisticFilterType = "plan_id"
)

var filterTypes = []CreditStatisticFilterType{
	CreditStatisticFilterTypeSourceType,
	CreditStatisticFilterTypePlanID,
}

// filterColumns exist on every table a statistic reads.
var filterColumns = []string{"source_type", "plan_id", "user_id", "created_at"}

var validFilters = map[CreditStatisticFilterType][]StatisticType{
	CreditStatisticFilterTypeSourceType: {
		StatisticTypeDailyCreditsGranted, StatisticTypeDailyCreditsUsed, StatisticTypeDailyCreditsExpired,
		StatisticTypeDailyCreditsSuperseded, StatisticTypeActiveCreditCount,
	},
	CreditStatisticFilterTypePlanID: {StatisticTypeActiveSubscriptionCount},
}

type CreditStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type CreditStatisticRequest struct {
	Filters   []*types.CommonFilter      `json:"filters"`
	DataItems []*CreditStatisticDataItem `json:"data_items"`
}

// applicable reports whether every restricted filter of the request applies to st.
func (r *CreditStatisticRequest) applicable(st StatisticType) bool {
	for _, f := range r.Filters {
		ft := CreditStatisticFilterType(f.Field)
		if lo.Contains(filterTypes, ft) && !lo.Contains(validFilters[ft], st) {
			return false
		}
	}
	return true
}

func (r *CreditStatisticRequest) where() clause.Where {
	return clause.Where{Exprs: []clause.Expression{types.AndFilters(r.Filters)}}
}

type CreditStatisticResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type CreditStatisticResponse struct {
	DataItems map[StatisticType][]CreditStatisticResponseDataItem `json:"data_items"`
}

// Service computes admin statistics over the ledger tables.
type Service struct {
	db    *gorm.DB
	clock clock.Clock
}

func New(db *gorm.DB, clk clock.Clock) *Service { return &Service{db: db, clock: clk} }

// dayExpr formats column as YYYY-MM-DD in the connected dialect.
func (s *Service) dayExpr(column string) string {
	if s.db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	// sqlite keeps timestamps as ISO text
	return fmt.Sprintf("substr(%s, 1, 10)", column)
}

func (s *Service) daily(ctx context.Context, table, column string, request *CreditStatisticRequest, scope func(*gorm.DB) *gorm.DB) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	day := s.dayExpr(column)
	q := s.db.WithContext(ctx).Table(table).
		Select(fmt.Sprintf("%s AS date, source_type AS label, COUNT(*) AS value", day)).
		Scopes(scope).
		Where(request.where()).
		Group(day).
		Group("source_type").
		Order("date DESC").Order("label ASC")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyCreditsGranted(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	return s.daily(ctx, models.Credit{}.TableName(), "created_at", request, func(q *gorm.DB) *gorm.DB { return q })
}

func (s *Service) getDailyCreditsUsed(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	return s.daily(ctx, models.Credit{}.TableName(), "used_at", request, func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", types.CreditStatusUsed)
	})
}

func (s *Service) getDailyCreditLog(ctx context.Context, request *CreditStatisticRequest, reason types.CreditChangeReason) ([]CreditStatisticResponseDataItem, error) {
	return s.daily(ctx, models.CreditLog{}.TableName(), "created_at", request, func(q *gorm.DB) *gorm.DB {
		return q.Where("reason = ?", reason)
	})
}

func (s *Service) getActiveCreditCount(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table(models.Credit{}.TableName()).
		Select("source_type AS label, COUNT(*) AS value").
		Where("status = ?", types.CreditStatusActive).
		Where("(expires_at IS NULL OR expires_at > ?)", s.clock.Now()).
		Where(request.where()).
		Group("source_type").
		Order("label ASC")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getActiveSubscriptionCount(ctx context.Context, request *CreditStatisticRequest) ([]CreditStatisticResponseDataItem, error) {
	var results []CreditStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table(models.Subscription{}.TableName()).
		Select("plan_id AS label, COUNT(DISTINCT user_id) AS value").
		Where("status = ?", types.SubscriptionStatusActive).
		Where(request.where()).
		Group("plan_id").
		Order("label ASC")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getCreditStatistic(ctx context.Context, request *CreditStatisticRequest, dataItem *CreditStatisticDataItem) ([]CreditStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyCreditsGranted:
		return s.getDailyCreditsGranted(ctx, request)
	case StatisticTypeDailyCreditsUsed:
		return s.getDailyCreditsUsed(ctx, request)
	case StatisticTypeDailyCreditsExpired:
		return s.getDailyCreditLog(ctx, request, types.CreditChangeReasonExpired)
	case StatisticTypeDailyCreditsSuperseded:
		return s.getDailyCreditLog(ctx, request, types.CreditChangeReasonSuperseded)
	case StatisticTypeActiveCreditCount:
		return s.getActiveCreditCount(ctx, request)
	case StatisticTypeActiveSubscriptionCount:
		return s.getActiveSubscriptionCount(ctx, request)
	default:
		return nil, ledger.InvalidArgument("invalid data item id: %s", dataItem.ID)
	}
}

// GetCreditStatistic computes every requested data item concurrently. Items
// that a restricted filter does not apply to come back empty.
func (s *Service) GetCreditStatistic(ctx context.Context, request *CreditStatisticRequest) (*CreditStatisticResponse, error) {
	if request == nil || len(request.DataItems) == 0 {
		return nil, ledger.InvalidArgument("data_items is required")
	}
	if err := types.AndFilters(request.Filters).Validate(filterColumns...); err != nil {
		return nil, ledger.InvalidArgument("%v", err)
	}
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []CreditStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *CreditStatisticDataItem) {
			defer wg.Done()
			if !request.applicable(di.ID) {
				resChan <- &lo.Entry[StatisticType, []CreditStatisticResponseDataItem]{Key: di.ID, Value: nil}
				return
			}
			res, err := s.getCreditStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []CreditStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}
	wg.Wait()
	close(errChan)
	close(resChan)

	if err := <-errChan; err != nil {
		if ledger.IsDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("credit statistic: %w: %w", ledger.ErrLedgerInfrastructure, err)
	}
	results := make(map[StatisticType][]CreditStatisticResponseDataItem, len(request.DataItems))
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	return &CreditStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
