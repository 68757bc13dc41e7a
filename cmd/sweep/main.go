// Command sweep runs one expiration pass and exits. Use it from cron when
// the API's built-in ticker is disabled.
package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app"
	"github.com/fatflowers/creditledger/internal/app/service/expiration"
)

func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	var (
		sweeper *expiration.Sweeper
		log     *zap.SugaredLogger
	)
	a := fx.New(
		app.Core,
		fx.Provide(expiration.NewSweeper),
		fx.Populate(&sweeper, &log),
		fx.NopLogger,
	)
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to start sweep: %v", err)
		exitCode = 1
		return
	}

	report, err := sweeper.RunOnce(context.Background())
	if err != nil {
		log.Errorw("sweep failed", "err", err)
		exitCode = 1
	} else {
		log.Infow("sweep finished", "expired", report.Expired, "warned_users", report.WarnedUsers)
	}

	// stopping drains queued expiration warnings
	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil {
		log.Errorw("failed to stop sweep", "err", err)
		exitCode = 1
	}
}
