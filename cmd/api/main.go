// Command api serves the credit ledger HTTP API and runs its background workers.
package main

// @title           Credit Ledger API
// @version         1.0
// @description     Credit ledger for subscription, purchase and referral credits.

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	// the app logger may not exist yet when fx fails
	fallback := zap.NewExample().Sugar()

	a := fx.New(app.Module)
	if err := a.Err(); err != nil {
		fallback.Errorw("invalid app graph", "err", err)
		return 1
	}

	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		fallback.Errorw("failed to start api", "err", err)
		return 1
	}

	// SIGINT/SIGTERM or fx.Shutdowner
	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		fallback.Errorw("failed to stop api", "err", err)
		return 1
	}
	return sig.ExitCode
}
