package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/creditledger/internal/app/api/server"
	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/consumer"
	"github.com/fatflowers/creditledger/internal/app/service/expiration"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/lifecycle"
	"github.com/fatflowers/creditledger/internal/app/service/notification"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/app/service/referral"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/internal/app/service/subscription"
	"github.com/fatflowers/creditledger/internal/app/service/usage"
	"github.com/fatflowers/creditledger/internal/platform/db"
	"github.com/fatflowers/creditledger/internal/platform/redis"
	"github.com/fatflowers/creditledger/pkg/clock"
	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logger"
	"github.com/fatflowers/creditledger/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Core is everything except the HTTP server and background workers.
var Core = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	redis.Module,
	metrics.Module,
	fx.Provide(clock.New),
	ledger.Module,
	plan.Module,
	notification.Module,
	allocator.Module,
	referral.Module,
	usage.Module,
	consumer.Module,
	subscription.Module,
	lifecycle.Module,
	statistics.Module,
)

var Module = fx.Options(
	Core,
	expiration.Module,
	server.Module,
)
