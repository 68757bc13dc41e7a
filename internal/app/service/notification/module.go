package notification

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/pkg/config"
)

func newThrottle(client *goredis.Client, cfg *config.Config, log *zap.SugaredLogger) *Throttle {
	return NewThrottle(client, cfg.Notification.ThrottleTTL, log)
}

func runDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: d.Stop,
	})
}

var Module = fx.Options(
	fx.Provide(
		newThrottle,
		fx.Annotate(NewLogSender, fx.As(new(Sender))),
		NewDispatcher,
		func(d *Dispatcher) Notifier { return d },
	),
	fx.Invoke(runDispatcher),
)
