package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/pkg/logctx"
)

// Sender delivers a message to the user. Implementations may be called
// concurrently from several workers.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// LogSender writes notifications to the structured log. It stands in for an
// email or push provider.
type LogSender struct {
	log *zap.SugaredLogger
}

func NewLogSender(log *zap.SugaredLogger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	logctx.FromCtx(ctx, s.log).Infow("notification",
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"data", msg.Data,
		"attempt", msg.Attempts,
	)
	return nil
}
