package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/logctx"
	"github.com/fatflowers/creditledger/pkg/metrics"
)

var ErrDispatcherStopped = errors.New("notification: dispatcher stopped")

// Dispatcher is an in-process queue drained by a fixed pool of workers.
// Enqueue never blocks: a full queue drops the message.
type Dispatcher struct {
	queue    chan *Message
	sender   Sender
	throttle *Throttle
	cfg      config.NotificationConfig
	metrics  *metrics.Ledger
	log      *zap.SugaredLogger

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(cfg *config.Config, sender Sender, throttle *Throttle, m *metrics.Ledger, log *zap.SugaredLogger) *Dispatcher {
	nc := cfg.Notification
	if nc.Workers <= 0 {
		nc.Workers = 1
	}
	if nc.QueueSize <= 0 {
		nc.QueueSize = 1
	}
	if nc.MaxAttempts <= 0 {
		nc.MaxAttempts = 1
	}
	return &Dispatcher{
		queue:    make(chan *Message, nc.QueueSize),
		sender:   sender,
		throttle: throttle,
		cfg:      nc,
		metrics:  m,
		log:      log,
	}
}

func (d *Dispatcher) NotifyLowCredit(ctx context.Context, userID string, remaining int64) {
	d.enqueue(ctx, lowCreditMessage(userID, remaining))
}

func (d *Dispatcher) NotifyCreditExpiration(ctx context.Context, userID string, count int64, expiresAt time.Time) {
	d.enqueue(ctx, expirationMessage(userID, count, expiresAt))
}

func (d *Dispatcher) NotifyPaymentFailed(ctx context.Context, userID, subscriptionID string) {
	d.enqueue(ctx, paymentFailedMessage(userID, subscriptionID))
}

// Enqueue adds msg to the queue.
func (d *Dispatcher) Enqueue(msg *Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return errQueueFull
	}
}

var errQueueFull = errors.New("notification: queue full")

func (d *Dispatcher) enqueue(ctx context.Context, msg *Message) {
	if err := d.Enqueue(msg); err != nil {
		d.metrics.Notification(string(msg.Kind), "dropped")
		logctx.FromCtx(ctx, d.log).Warnw("notification dropped",
			"kind", msg.Kind, "user_id", msg.UserID, "err", err)
	}
}

// Start launches the workers. They run until Stop.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.work(ctx)
		}()
	}
}

// Stop refuses new messages, lets the workers drain what is queued and
// waits for them until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if d.cancel != nil {
			d.cancel()
		}
		return nil
	case <-ctx.Done():
		if d.cancel != nil {
			d.cancel()
		}
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for msg := range d.queue {
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) {
	kind := string(msg.Kind)
	if !d.throttle.Allow(ctx, msg.DedupKey) {
		d.metrics.Notification(kind, "throttled")
		return
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		msg.Attempts = attempt
		err := d.sender.Send(ctx, msg)
		if err != nil {
			d.log.Warnw("notification attempt failed",
				"kind", kind, "user_id", msg.UserID, "attempt", attempt, "err", err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(d.retryPolicy()),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		d.metrics.Notification(kind, "sent")
		return
	}
	if ctx.Err() != nil {
		d.metrics.Notification(kind, "failed")
		return
	}

	d.throttle.Release(ctx, msg.DedupKey)
	d.metrics.Notification(kind, "failed")
	d.log.Errorw("notification failed", "kind", kind, "user_id", msg.UserID, "attempts", msg.Attempts, "err", err)
}

// retryPolicy doubles the wait from RetryBackoff, capped at 30 times it.
func (d *Dispatcher) retryPolicy() backoff.BackOff {
	if d.cfg.RetryBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.RetryBackoff
	b.MaxInterval = 30 * d.cfg.RetryBackoff
	return b
}
