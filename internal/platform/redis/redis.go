package redis

import (
	"context"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/pkg/config"
)

// NewClient returns nil when no address is configured; callers treat a nil
// client as "redis disabled".
func NewClient(cfg *config.Config, l *zap.SugaredLogger) *goredis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		l.Infow("redis disabled, no address configured")
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
}

func registerClose(lc fx.Lifecycle, client *goredis.Client, l *zap.SugaredLogger) {
	if client == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				l.Warnw("redis ping failed, throttling degrades to allow-all", "err", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Invoke(registerClose),
)
