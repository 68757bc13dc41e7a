package types

import "fmt"

type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderInner  PaymentProvider = "inner"
)

type PaymentEventType string

const (
	PaymentEventCheckoutCompleted    PaymentEventType = "checkout_completed"
	PaymentEventSubscriptionUpdated  PaymentEventType = "subscription_updated"
	PaymentEventSubscriptionDeleted  PaymentEventType = "subscription_deleted"
	PaymentEventInvoicePaymentFailed PaymentEventType = "invoice_payment_failed"
)

func ParsePaymentEventType(s string) (PaymentEventType, error) {
	t := PaymentEventType(s)
	switch t {
	case PaymentEventCheckoutCompleted, PaymentEventSubscriptionUpdated,
		PaymentEventSubscriptionDeleted, PaymentEventInvoicePaymentFailed:
		return t, nil
	}
	return "", fmt.Errorf("unknown payment event type %q", s)
}

type CheckoutMode string

const (
	CheckoutModeOneTime      CheckoutMode = "one_time"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

type PaymentEventStatus string

const (
	PaymentEventStatusReceived     PaymentEventStatus = "received"
	PaymentEventStatusHandled      PaymentEventStatus = "handled"
	PaymentEventStatusHandleFailed PaymentEventStatus = "handle_failed"
)
