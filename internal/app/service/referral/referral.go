package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/models"
	"github.com/fatflowers/creditledger/internal/platform/db"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/tool"
)

// ErrInvalidReferral covers unknown codes, self-referrals and users that
// already redeemed a code.
var ErrInvalidReferral = errors.New("referral: invalid referral")

const codeAttempts = 3

// Counter maintains the referrer's lifetime counters.
type Counter struct {
	store ledger.Store
	clock clock.Clock
}

func NewCounter(store ledger.Store, clk clock.Clock) *Counter {
	return &Counter{store: store, clock: clk}
}

func (c *Counter) RecordReward(ctx context.Context, referrerUserID string, rewardUSD float64) error {
	return c.store.IncrementReferralStats(ctx, referrerUserID, rewardUSD, c.clock.Now())
}

type Service struct {
	store     ledger.Store
	allocator *allocator.Allocator
	rewardUSD float64
	clock     clock.Clock
	log       *zap.SugaredLogger
}

func NewService(store ledger.Store, alloc *allocator.Allocator, cfg *config.Config, clk clock.Clock, log *zap.SugaredLogger) *Service {
	return &Service{store: store, allocator: alloc, rewardUSD: cfg.Referral.RewardValueUSD, clock: clk, log: log}
}

type Redemption struct {
	ReferrerUserID string `json:"referrer_user_id"`
	ReferredUserID string `json:"referred_user_id"`
	Credits        int    `json:"credits"`
}

// Redeem links referredUserID to the owner of code and grants one referral
// credit to each of them.
func (s *Service) Redeem(ctx context.Context, code, referredUserID string) (*Redemption, error) {
	code = NormalizeCode(code)
	if code == "" || referredUserID == "" {
		return nil, ledger.InvalidArgument("code and user id are required")
	}

	var res *allocator.GrantResult
	var referrerID string
	err := s.store.Transaction(ctx, func(tx ledger.Store) error {
		referrer, err := tx.GetUserByReferralCode(ctx, code)
		if errors.Is(err, ledger.ErrUserNotFound) {
			return fmt.Errorf("%w: unknown code %s", ErrInvalidReferral, code)
		}
		if err != nil {
			return err
		}
		if referrer.ID == referredUserID {
			return fmt.Errorf("%w: self referral", ErrInvalidReferral)
		}
		now := s.clock.Now()
		if _, err := tx.EnsureUser(ctx, referredUserID, referrer.OrganizationID, now); err != nil {
			return err
		}
		changed, err := tx.SetReferredBy(ctx, referredUserID, referrer.ID, now)
		if err != nil {
			return err
		}
		if !changed {
			return fmt.Errorf("%w: user %s already referred", ErrInvalidReferral, referredUserID)
		}
		referrerID = referrer.ID
		res, err = s.allocator.GrantReferralCreditsTx(ctx, tx, allocator.ReferralGrant{
			ReferrerUserID: referrer.ID,
			ReferredUserID: referredUserID,
			RewardValueUSD: s.rewardUSD,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.allocator.Committed(ctx, res)
	logctx.FromCtx(ctx, s.log).Infow("referral redeemed", "referrer_user_id", referrerID, "referred_user_id", referredUserID)
	return &Redemption{ReferrerUserID: referrerID, ReferredUserID: referredUserID, Credits: len(res.Credits)}, nil
}

// EnsureCode returns the user's referral code, assigning one if missing.
func (s *Service) EnsureCode(ctx context.Context, userID string) (string, error) {
	if _, err := s.store.EnsureUser(ctx, userID, "", s.clock.Now()); err != nil {
		return "", err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}
	for i := 0; i < codeAttempts; i++ {
		code := tool.GenerateReferralCode()
		user.ReferralCode = &code
		err = s.store.SaveUser(ctx, user)
		if err == nil {
			return code, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return "", err
		}
	}
	return "", err
}

// Stats returns the lifetime counters of a referrer.
func (s *Service) Stats(ctx context.Context, userID string) (*models.ReferralStat, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ledger.ErrUserNotFound)
	}
	return s.store.GetReferralStat(ctx, userID)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
