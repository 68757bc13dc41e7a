package expiration

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(runSweeper),
)

// runSweeper ties the ticker loop to the app lifecycle. Stop cancels the
// loop and waits for the pass in flight to finish.
func runSweeper(lc fx.Lifecycle, s *Sweeper) {
	if s.cfg.Interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
