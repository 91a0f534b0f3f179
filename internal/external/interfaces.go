package external

import (
	"context"

	"greenquote/internal/types"
)

// EmailProvider sends a fully rendered email and returns the provider's
// message ID.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (string, error)
}

// BillingService is the slice of Stripe the API uses.
type BillingService interface {
	EnsureCustomer(ctx context.Context, account *types.Account) (string, error)
	CreateCheckoutSession(ctx context.Context, account *types.Account, plan types.PlanTier, urls types.RedirectURLs) (url, sessionID string, err error)
	CreatePortalSession(ctx context.Context, account *types.Account, returnURL string) (string, error)
	PlanForPrice(priceID string) (types.PlanTier, bool)
}

// WebhookVerifier checks a Stripe-Signature header against the raw body.
type WebhookVerifier interface {
	Verify(payload []byte, header, secret string) error
}

// Stripe event types the webhook handler reacts to.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventSubscriptionCreated   = "customer.subscription.created"
	EventSubscriptionUpdated   = "customer.subscription.updated"
	EventSubscriptionDeleted   = "customer.subscription.deleted"
	EventInvoicePaymentSuccess = "invoice.payment_succeeded"
	EventInvoicePaymentFailed  = "invoice.payment_failed"
)
