package expiration

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/notification"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/metrics"
	"github.com/fatflowers/creditledger/pkg/tool"
	"github.com/fatflowers/creditledger/pkg/types"
)

const defaultBatchSize = 500

// Sweeper moves lapsed credits to expired and warns users about credits
// that lapse soon. Reads already ignore lapsed rows, so sweeping only makes
// the stored status catch up.
type Sweeper struct {
	store    ledger.Store
	notifier notification.Notifier
	cfg      config.ExpirationConfig
	metrics  *metrics.Ledger
	clock    clock.Clock
	log      *zap.SugaredLogger
}

func NewSweeper(store ledger.Store, notifier notification.Notifier, cfg *config.Config, m *metrics.Ledger, clk clock.Clock, log *zap.SugaredLogger) *Sweeper {
	ec := cfg.Expiration
	if ec.BatchSize <= 0 {
		ec.BatchSize = defaultBatchSize
	}
	return &Sweeper{store: store, notifier: notifier, cfg: ec, metrics: m, clock: clk, log: log}
}

type Report struct {
	Expired     int `json:"expired"`
	WarnedUsers int `json:"warned_users"`
}

// RunOnce sweeps and then sends upcoming-expiration warnings.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	expired, err := s.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	warned, err := s.WarnUpcoming(ctx)
	if err != nil {
		return &Report{Expired: expired}, err
	}
	return &Report{Expired: expired, WarnedUsers: warned}, nil
}

// Sweep expires every active credit whose expires_at has passed, one batch
// per transaction, and returns how many it expired.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		var batch []*models.Credit
		err := s.store.Transaction(ctx, func(tx ledger.Store) error {
			var err error
			batch, err = tx.ExpireActive(ctx, now, s.cfg.BatchSize)
			if err != nil || len(batch) == 0 {
				return err
			}
			return tx.InsertCreditLogs(ctx, expiredLogs(batch, now))
		})
		if err != nil {
			return total, err
		}
		total += len(batch)
		s.metrics.CreditsExpired(len(batch))
		if len(batch) < s.cfg.BatchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	if total > 0 {
		s.log.Infow("expired credits", "count", total, "at", now)
	}
	return total, nil
}

func expiredLogs(batch []*models.Credit, now time.Time) []*models.CreditLog {
	logs := make([]*models.CreditLog, 0, len(batch))
	for _, c := range batch {
		before := *c
		before.Status = types.CreditStatusActive
		logs = append(logs, &models.CreditLog{
			ID:         tool.GenerateUUIDV7(),
			UserID:     c.UserID,
			CreditID:   c.ID,
			SourceType: c.SourceType,
			Reason:     types.CreditChangeReasonExpired,
			Before:     datatypes.NewJSONType(&before),
			Extra:      datatypes.JSONMap{},
			CreatedAt:  now,
		})
	}
	return logs
}

// WarnUpcoming queues one expiration warning per user holding active credits
// that lapse within the warning window. It returns the number of users.
func (s *Sweeper) WarnUpcoming(ctx context.Context) (int, error) {
	if s.cfg.WarnWithin <= 0 || s.notifier == nil {
		return 0, nil
	}
	now := s.clock.Now()
	expiring, err := s.store.ListExpiring(ctx, now, now.Add(s.cfg.WarnWithin))
	if err != nil {
		return 0, err
	}
	for _, e := range expiring {
		s.notifier.NotifyCreditExpiration(ctx, e.UserID, e.Count, e.EarliestExpires)
	}
	return len(expiring), nil
}

// RunForever calls RunOnce every interval until ctx is done.
func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorw("expiration sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
