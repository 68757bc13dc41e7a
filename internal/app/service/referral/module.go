package referral

import (
	"go.uber.org/fx"

	"github.com/fatflowers/creditledger/internal/app/service/allocator"
)

var Module = fx.Options(
	fx.Provide(
		NewService,
		fx.Annotate(NewCounter, fx.As(new(allocator.ReferralLedger))),
	),
)
