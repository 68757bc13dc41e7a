package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/platform/db"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

const unexpiredCond = "(expires_at IS NULL OR expires_at > ?)"

var scanSortColumns = map[string]struct{}{
	"created_at": {},
	"updated_at": {},
	"used_at":    {},
	"expires_at": {},
	"priority":   {},
	"value_usd":  {},
}

// ScanFilterColumns are the credit columns admin filters may reference.
var ScanFilterColumns = []string{
	"id", "user_id", "source_type", "source_id", "status", "priority",
	"created_at", "updated_at", "used_at", "expires_at", "used_for_feature",
}

type gormStore struct {
	db   *gorm.DB
	inTx bool
}

func NewGormStore(gdb *gorm.DB) Store {
	return &gormStore{db: gdb}
}

func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *gormStore) lockForUpdate(q *gorm.DB, skipLocked bool) *gorm.DB {
	if !db.SupportsRowLocks(s.db) {
		return q
	}
	locking := clause.Locking{Strength: clause.LockingStrengthUpdate}
	if skipLocked {
		locking.Options = clause.LockingOptionsSkipLocked
	}
	return q.Clauses(locking)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	var fnErr error
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&gormStore{db: tx, inTx: true})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return infra("commit transaction", err)
	}
	return err
}

func (s *gormStore) InsertCredit(ctx context.Context, credit *models.Credit) error {
	return infra("insert credit", s.conn(ctx).Create(credit).Error)
}

func (s *gormStore) BulkInsertCredits(ctx context.Context, credits []*models.Credit) error {
	if len(credits) == 0 {
		return nil
	}
	return infra("bulk insert credits", s.conn(ctx).Create(&credits).Error)
}

func (s *gormStore) DeleteActiveBySource(ctx context.Context, userID string, source types.CreditSourceType) ([]*models.Credit, error) {
	var rows []*models.Credit
	q := s.conn(ctx).
		Where("user_id = ? AND source_type = ? AND status = ?", userID, source, types.CreditStatusActive)
	if err := s.lockForUpdate(q, false).Find(&rows).Error; err != nil {
		return nil, infra("select credits to delete", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := lo.Map(rows, func(c *models.Credit, _ int) string { return c.ID })
	if err := s.conn(ctx).
		Where("id IN ? AND status = ?", ids, types.CreditStatusActive).
		Delete(&models.Credit{}).Error; err != nil {
		return nil, infra("delete credits", err)
	}
	return rows, nil
}

func (s *gormStore) ClaimHighestPriorityActive(ctx context.Context, userID string, now time.Time) (*models.Credit, error) {
	var rows []*models.Credit
	q := s.conn(ctx).
		Where("user_id = ? AND status = ?", userID, types.CreditStatusActive).
		Where(unexpiredCond, now).
		Order("priority DESC").Order("created_at ASC").Order("id ASC").
		Limit(1)
	if err := s.lockForUpdate(q, true).Find(&rows).Error; err != nil {
		return nil, infra("claim credit", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *gormStore) MarkCreditUsed(ctx context.Context, creditID string, usage CreditUsage) error {
	res := s.conn(ctx).Model(&models.Credit{}).
		Where("id = ? AND status IN ?", creditID, types.StatusesBefore(types.CreditStatusUsed)).
		Updates(map[string]any{
			"status":           types.CreditStatusUsed,
			"used_at":          usage.UsedAt,
			"used_for_feature": usage.Feature,
			"used_for_id":      usage.FeatureID,
			"updated_at":       usage.UsedAt,
		})
	if res.Error != nil {
		return infra("mark credit used", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrClaimConflict
	}
	return nil
}

func (s *gormStore) AggregateByStatus(ctx context.Context, userID string, now time.Time) ([]StatusAggregate, error) {
	var out []StatusAggregate
	err := s.conn(ctx).Model(&models.Credit{}).
		Select("source_type, status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Where(unexpiredCond, now).
		Group("source_type, status").
		Scan(&out).Error
	return out, infra("aggregate credits", err)
}

func (s *gormStore) CountActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Credit{}).
		Where("user_id = ? AND status = ?", userID, types.CreditStatusActive).
		Where(unexpiredCond, now).
		Count(&n).Error
	return n, infra("count active credits", err)
}

func (s *gormStore) ListCredits(ctx context.Context, userID string, limit int) ([]*models.Credit, error) {
	var rows []*models.Credit
	err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, infra("list credits", err)
}

func (s *gormStore) ScanCredits(ctx context.Context, req *ScanCreditsRequest) ([]*models.Credit, int64, error) {
	if req == nil {
		return nil, 0, InvalidArgument("nil scan request")
	}
	if err := types.AndFilters(req.Filters).Validate(ScanFilterColumns...); err != nil {
		return nil, 0, InvalidArgument("%v", err)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	base := s.conn(ctx).Model(&models.Credit{})
	if len(req.Filters) > 0 {
		base = base.Where(clause.Where{Exprs: []clause.Expression{types.AndFilters(req.Filters)}})
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, infra("count credits", err)
	}

	q := base.Session(&gorm.Session{}).Limit(req.Size).Offset(req.From)
	sortBy := "created_at"
	if _, ok := scanSortColumns[req.SortBy]; ok {
		sortBy = req.SortBy
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.Credit
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, infra("scan credits", err)
	}
	return rows, total, nil
}

func (s *gormStore) ExpireActive(ctx context.Context, now time.Time, limit int) ([]*models.Credit, error) {
	var expired []*models.Credit
	err := s.Transaction(ctx, func(txStore Store) error {
		tx := txStore.(*gormStore)
		q := tx.conn(ctx).
			Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", types.CreditStatusActive, now).
			Order("expires_at ASC").
			Limit(limit)
		if err := tx.lockForUpdate(q, true).Find(&expired).Error; err != nil {
			return infra("select expired credits", err)
		}
		if len(expired) == 0 {
			return nil
		}
		ids := lo.Map(expired, func(c *models.Credit, _ int) string { return c.ID })
		if err := tx.conn(ctx).Model(&models.Credit{}).
			Where("id IN ? AND status IN ?", ids, types.StatusesBefore(types.CreditStatusExpired)).
			Updates(map[string]any{"status": types.CreditStatusExpired, "updated_at": now}).Error; err != nil {
			return infra("expire credits", err)
		}
		for _, c := range expired {
			c.Status = types.CreditStatusExpired
			c.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *gormStore) ListExpiring(ctx context.Context, from, to time.Time) ([]ExpiringCredits, error) {
	var rows []*models.Credit
	err := s.conn(ctx).
		Select("user_id", "expires_at").
		Where("status = ? AND expires_at > ? AND expires_at <= ?", types.CreditStatusActive, from, to).
		Find(&rows).Error
	if err != nil {
		return nil, infra("list expiring credits", err)
	}

	// grouped in Go: MIN(expires_at) does not scan back into time.Time on every driver
	byUser := lo.GroupBy(rows, func(c *models.Credit) string { return c.UserID })
	out := make([]ExpiringCredits, 0, len(byUser))
	for userID, credits := range byUser {
		earliest := *credits[0].ExpiresAt
		for _, c := range credits[1:] {
			if c.ExpiresAt.Before(earliest) {
				earliest = *c.ExpiresAt
			}
		}
		out = append(out, ExpiringCredits{UserID: userID, Count: int64(len(credits)), EarliestExpires: earliest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *gormStore) InsertCreditLogs(ctx context.Context, logs []*models.CreditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return infra("insert credit logs", s.conn(ctx).Create(&logs).Error)
}

func (s *gormStore) IncrementUsageCounter(ctx context.Context, inc UsageIncrement) error {
	counter := &models.UsagePeriodCounter{
		ID:          tool.GenerateUUIDV7(),
		UserID:      inc.UserID,
		FeatureType: inc.Feature,
		PeriodStart: inc.PeriodStart,
		PeriodEnd:   inc.PeriodEnd,
		LimitCount:  inc.LimitCount,
		CreatedAt:   inc.At,
		UpdatedAt:   inc.At,
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "feature_type"}, {Name: "period_start"}},
		DoNothing: true,
	}).Create(counter).Error
	if err != nil {
		return infra("create usage counter", err)
	}

	updates := map[string]any{"updated_at": inc.At}
	if inc.Source != nil && inc.Source.IsBonus() {
		updates["bonus_usage_count"] = gorm.Expr("bonus_usage_count + ?", 1)
		updates["bonus_source"] = *inc.Source
	} else {
		updates["usage_count"] = gorm.Expr("usage_count + ?", 1)
	}
	res := s.conn(ctx).Model(&models.UsagePeriodCounter{}).
		Where("user_id = ? AND feature_type = ? AND period_start = ?", inc.UserID, inc.Feature, inc.PeriodStart).
		Updates(updates)
	if res.Error != nil {
		return infra("increment usage counter", res.Error)
	}
	if res.RowsAffected == 0 {
		return infra("increment usage counter", errors.New("counter row missing after upsert"))
	}
	return nil
}

func (s *gormStore) ListUsageCounters(ctx context.Context, userID string, periodStart time.Time) ([]*models.UsagePeriodCounter, error) {
	var rows []*models.UsagePeriodCounter
	err := s.conn(ctx).
		Where("user_id = ? AND period_start = ?", userID, periodStart).
		Order("feature_type ASC").
		Find(&rows).Error
	return rows, infra("list usage counters", err)
}

func (s *gormStore) GetActiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var rows []*models.Subscription
	err := s.conn(ctx).
		Where("user_id = ? AND status = ?", userID, types.SubscriptionStatusActive).
		Order("created_at DESC").Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, infra("get active subscription", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *gormStore) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var rows []*models.Subscription
	err := s.conn(ctx).
		Where("external_subscription_id = ?", externalID).
		Order("created_at DESC").Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, infra("get subscription by external id", err)
	}
	if len(rows) == 0 {
		return nil, ErrSubscriptionNotFound
	}
	return rows[0], nil
}

func (s *gormStore) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return infra("save subscription", s.conn(ctx).Save(sub).Error)
}

func (s *gormStore) InsertSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error {
	return infra("insert subscription log", s.conn(ctx).Create(log).Error)
}

func (s *gormStore) InsertPaymentEvent(ctx context.Context, ev *models.PaymentEvent) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
		DoNothing: true,
	}).Create(ev)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, infra("insert payment event", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) GetPaymentEvent(ctx context.Context, provider types.PaymentProvider, eventID string) (*models.PaymentEvent, error) {
	var rows []*models.PaymentEvent
	err := s.conn(ctx).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, infra("get payment event", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *gormStore) UpdatePaymentEvent(ctx context.Context, ev *models.PaymentEvent) error {
	return infra("update payment event", s.conn(ctx).Save(ev).Error)
}

func (s *gormStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	var rows []*models.User
	if err := s.conn(ctx).Where("id = ?", userID).Limit(1).Find(&rows).Error; err != nil {
		return nil, infra("get user", err)
	}
	if len(rows) == 0 {
		return nil, ErrUserNotFound
	}
	return rows[0], nil
}

func (s *gormStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var rows []*models.User
	if err := s.conn(ctx).Where("referral_code = ?", code).Limit(1).Find(&rows).Error; err != nil {
		return nil, infra("get user by referral code", err)
	}
	if len(rows) == 0 {
		return nil, ErrUserNotFound
	}
	return rows[0], nil
}

func (s *gormStore) SaveUser(ctx context.Context, user *models.User) error {
	return infra("save user", s.conn(ctx).Save(user).Error)
}

func (s *gormStore) EnsureUser(ctx context.Context, userID, organizationID string, at time.Time) (bool, error) {
	if userID == "" {
		return false, ErrUserNotFound
	}
	res := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&models.User{ID: userID, OrganizationID: organizationID, CreatedAt: at, UpdatedAt: at})
	if res.Error != nil {
		return false, infra("ensure user", res.Error)
	}
	if res.RowsAffected == 1 || organizationID == "" {
		return res.RowsAffected == 1, nil
	}
	err := s.conn(ctx).Model(&models.User{}).
		Where("id = ? AND organization_id = ?", userID, "").
		Updates(map[string]any{"organization_id": organizationID, "updated_at": at}).Error
	return false, infra("fill user organization", err)
}

func (s *gormStore) SetReferredBy(ctx context.Context, userID, referrerID string, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&models.User{}).
		Where("id = ? AND referred_by IS NULL", userID).
		Updates(map[string]any{"referred_by": referrerID, "updated_at": at})
	if res.Error != nil {
		return false, infra("set referred by", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) IncrementReferralStats(ctx context.Context, userID string, rewardUSD float64, at time.Time) error {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.ReferralStat{UserID: userID, UpdatedAt: at}).Error
	if err != nil {
		return infra("create referral stat", err)
	}
	err = s.conn(ctx).Model(&models.ReferralStat{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"lifetime_referrals":  gorm.Expr("lifetime_referrals + ?", 1),
			"lifetime_reward_usd": gorm.Expr("lifetime_reward_usd + ?", rewardUSD),
			"updated_at":          at,
		}).Error
	return infra("increment referral stat", err)
}

func (s *gormStore) GetReferralStat(ctx context.Context, userID string) (*models.ReferralStat, error) {
	var rows []*models.ReferralStat
	if err := s.conn(ctx).Where("user_id = ?", userID).Limit(1).Find(&rows).Error; err != nil {
		return nil, infra("get referral stat", err)
	}
	if len(rows) == 0 {
		return &models.ReferralStat{UserID: userID}, nil
	}
	return rows[0], nil
}
