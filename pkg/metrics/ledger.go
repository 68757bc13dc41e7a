package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const ledgerSubsystem = "ledger"

var creditsGranted = &Metric{
	ID:          "creditsGranted",
	Name:        "credits_granted_total",
	Description: "Credit records created, partitioned by source type.",
	Type:        "counter_vec",
	Args:        []string{"source"},
}

var creditsSuperseded = &Metric{
	ID:          "creditsSuperseded",
	Name:        "credits_superseded_total",
	Description: "Active subscription credit records removed by a plan replacement.",
	Type:        "counter",
}

var creditsConsumed = &Metric{
	ID:          "creditsConsumed",
	Name:        "credits_consumed_total",
	Description: "Successful credit consumptions, partitioned by source type and feature.",
	Type:        "counter_vec",
	Args:        []string{"source", "feature"},
}

var creditsExpired = &Metric{
	ID:          "creditsExpired",
	Name:        "credits_expired_total",
	Description: "Credit records moved to expired by the sweeper.",
	Type:        "counter",
}

var insufficientCredits = &Metric{
	ID:          "insufficientCredits",
	Name:        "insufficient_credits_total",
	Description: "Consumption attempts rejected for lack of active credits.",
	Type:        "counter",
}

var claimDur = &Metric{
	ID:          "claimDur",
	Name:        "claim_dur_ms",
	Description: "Latency of the consume transaction in milliseconds.",
	Type:        "histogram",
}

var paymentEvents = &Metric{
	ID:          "paymentEvents",
	Name:        "payment_events_total",
	Description: "Payment webhook events, partitioned by type and outcome.",
	Type:        "counter_vec",
	Args:        []string{"type", "outcome"},
}

var notificationsSent = &Metric{
	ID:          "notificationsSent",
	Name:        "notifications_total",
	Description: "Notification deliveries, partitioned by kind and outcome.",
	Type:        "counter_vec",
	Args:        []string{"kind", "outcome"},
}

// Ledger holds the business metrics of the credit ledger. A nil *Ledger is
// valid and records nothing.
type Ledger struct {
	granted       *prometheus.CounterVec
	superseded    prometheus.Counter
	consumed      *prometheus.CounterVec
	expired       prometheus.Counter
	insufficient  prometheus.Counter
	claimDuration prometheus.Histogram
	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func NewLedger(reg prometheus.Registerer) (*Ledger, error) {
	l := &Ledger{}
	var firstErr error
	register := func(def *Metric) prometheus.Collector {
		c, err := Register(reg, NewMetric(def, ledgerSubsystem))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return c
	}
	l.granted = collectorAs[*prometheus.CounterVec](register(creditsGranted))
	l.superseded = collectorAs[prometheus.Counter](register(creditsSuperseded))
	l.consumed = collectorAs[*prometheus.CounterVec](register(creditsConsumed))
	l.expired = collectorAs[prometheus.Counter](register(creditsExpired))
	l.insufficient = collectorAs[prometheus.Counter](register(insufficientCredits))
	l.claimDuration = collectorAs[prometheus.Histogram](register(claimDur))
	l.events = collectorAs[*prometheus.CounterVec](register(paymentEvents))
	l.notifications = collectorAs[*prometheus.CounterVec](register(notificationsSent))
	return l, firstErr
}

func (l *Ledger) CreditsGranted(source string, n int) {
	if l == nil || n <= 0 {
		return
	}
	l.granted.WithLabelValues(source).Add(float64(n))
}

func (l *Ledger) CreditsSuperseded(n int) {
	if l == nil || n <= 0 {
		return
	}
	l.superseded.Add(float64(n))
}

func (l *Ledger) CreditConsumed(source, feature string) {
	if l == nil {
		return
	}
	l.consumed.WithLabelValues(source, feature).Inc()
}

func (l *Ledger) CreditsExpired(n int) {
	if l == nil || n <= 0 {
		return
	}
	l.expired.Add(float64(n))
}

func (l *Ledger) InsufficientCredits() {
	if l == nil {
		return
	}
	l.insufficient.Inc()
}

func (l *Ledger) ObserveClaim(start time.Time) {
	if l == nil {
		return
	}
	l.claimDuration.Observe(MillisecondsSince(start))
}

func (l *Ledger) PaymentEvent(eventType, outcome string) {
	if l == nil {
		return
	}
	l.events.WithLabelValues(eventType, outcome).Inc()
}

func (l *Ledger) Notification(kind, outcome string) {
	if l == nil {
		return
	}
	l.notifications.WithLabelValues(kind, outcome).Inc()
}

func newDefaultLedger() (*Ledger, error) {
	return NewLedger(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(newDefaultLedger),
)
