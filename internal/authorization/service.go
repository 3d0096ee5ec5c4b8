package authorization

import "context"

const (
	ObjectPricing      = "pricing"
	ObjectSubscription = "subscription"
	ObjectInvoice      = "invoice"
	ObjectBilling      = "billing"
	ObjectNotification = "notification"
)

const (
	ActionPricingQuote    = "pricing.quote"
	ActionPricingCheckout = "pricing.checkout"

	ActionSubscriptionView   = "subscription.view"
	ActionSubscriptionChange = "subscription.change"

	// ActionInvoiceView covers a provider's own invoices; ActionInvoiceViewAny any provider's.
	ActionInvoiceView           = "invoice.view"
	ActionInvoiceViewAny        = "invoice.view_any"
	ActionInvoiceMarkPaid       = "invoice.mark_paid"
	ActionInvoiceTransferFailed = "invoice.transfer_failed"

	ActionBillingRun    = "billing.run"
	ActionBillingStatus = "billing.status"

	ActionNotificationView = "notification.view"
)

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}
