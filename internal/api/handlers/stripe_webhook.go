package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v82"

	"greenquote/internal/core"
	"greenquote/internal/external"
	"greenquote/internal/types"
)

const maxWebhookBodySize = 64 * 1024

// SubscriptionStore is the account state the Stripe webhook keeps in sync.
type SubscriptionStore interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Account, error)
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	UpdateSubscription(ctx context.Context, id string, plan types.PlanTier, status types.SubscriptionStatus, eventAt time.Time) error
	UpdateSubscriptionStatus(ctx context.Context, id string, status types.SubscriptionStatus) error
}

// PlanResolver maps a Stripe Price back to a plan.
type PlanResolver interface {
	PlanForPrice(priceID string) (types.PlanTier, bool)
}

// StripeWebhookHandler applies Stripe subscription events to accounts. It is
// mounted outside auth; the Stripe-Signature header is the credential.
type StripeWebhookHandler struct {
	verifier external.WebhookVerifier
	store    SubscriptionStore
	plans    PlanResolver
	secret   types.SecretString
	logger   *slog.Logger
}

func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	store SubscriptionStore,
	plans PlanResolver,
	secret types.SecretString,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		store:    store,
		plans:    plans,
		secret:   secret,
		logger:   logger,
	}
}

func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle verifies and applies one event. Once the signature checks out the
// response is always 200: processing failures are logged, because a retry
// from Stripe would not fix them.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidArgument, "failed to read request body", err))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "missing Stripe-Signature header", nil))
		return
	}
	if err := h.verifier.Verify(payload, sigHeader, h.secret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "stripe signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "webhook signature verification failed", err))
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "unparseable stripe event", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	logger := h.logger.With("event_id", event.ID, "event_type", event.Type)
	if err := h.apply(r.Context(), &event); err != nil {
		logger.ErrorContext(r.Context(), "stripe event processing failed", "error", err)
	} else {
		logger.InfoContext(r.Context(), "stripe event processed")
	}
	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) apply(ctx context.Context, event *stripeEvent) error {
	obj := &event.Data.Object
	eventAt := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case external.EventCheckoutCompleted:
		accountID, err := h.resolveAccount(ctx, obj)
		if err != nil {
			return err
		}
		if obj.Customer != "" {
			if err := h.store.SetStripeCustomerID(ctx, accountID, obj.Customer); err != nil {
				return err
			}
		}
		plan := types.PlanTier(obj.Metadata["plan"])
		if plan == "" {
			return fmt.Errorf("checkout session for %s carries no plan", accountID)
		}
		return h.store.UpdateSubscription(ctx, accountID, plan, types.SubStatusActive, eventAt)

	case external.EventSubscriptionCreated, external.EventSubscriptionUpdated:
		accountID, err := h.resolveAccount(ctx, obj)
		if err != nil {
			return err
		}
		status := subscriptionStatus(stripe.SubscriptionStatus(obj.Status))
		plan, ok := h.planOf(obj)
		if !ok {
			h.logger.WarnContext(ctx, "subscription price maps to no plan; updating status only",
				"account_id", accountID,
			)
			return h.store.UpdateSubscriptionStatus(ctx, accountID, status)
		}
		return h.store.UpdateSubscription(ctx, accountID, plan, status, eventAt)

	case external.EventSubscriptionDeleted:
		accountID, err := h.resolveAccount(ctx, obj)
		if err != nil {
			return err
		}
		return h.store.UpdateSubscription(ctx, accountID, types.PlanStarter, types.SubStatusCanceled, eventAt)

	case external.EventInvoicePaymentSuccess:
		accountID, err := h.resolveAccount(ctx, obj)
		if err != nil {
			return err
		}
		return h.store.UpdateSubscriptionStatus(ctx, accountID, types.SubStatusActive)

	case external.EventInvoicePaymentFailed:
		accountID, err := h.resolveAccount(ctx, obj)
		if err != nil {
			return err
		}
		return h.store.UpdateSubscriptionStatus(ctx, accountID, types.SubStatusPastDue)

	default:
		h.logger.DebugContext(ctx, "ignoring stripe event", "event_type", event.Type)
		return nil
	}
}

// resolveAccount finds the account an event is about: our own reference
// first, then the metadata we attach to sessions and subscriptions, then
// the Stripe customer.
func (h *StripeWebhookHandler) resolveAccount(ctx context.Context, obj *stripeObject) (string, error) {
	if obj.ClientReferenceID != "" {
		return obj.ClientReferenceID, nil
	}
	if id := obj.Metadata["account_id"]; id != "" {
		return id, nil
	}
	if obj.SubscriptionDetails != nil {
		if id := obj.SubscriptionDetails.Metadata["account_id"]; id != "" {
			return id, nil
		}
	}
	if obj.Customer != "" {
		account, err := h.store.GetByStripeCustomerID(ctx, obj.Customer)
		if err != nil {
			return "", err
		}
		return account.ID, nil
	}
	return "", fmt.Errorf("event object %s references no account", obj.ID)
}

func (h *StripeWebhookHandler) planOf(obj *stripeObject) (types.PlanTier, bool) {
	if h.plans == nil {
		return "", false
	}
	for _, item := range obj.Items.Data {
		if plan, ok := h.plans.PlanForPrice(item.Price.ID); ok {
			return plan, true
		}
	}
	return "", false
}

// subscriptionStatus folds Stripe's subscription states onto ours. States
// in which Stripe stops collecting map to canceled; those still owing map to
// past_due.
func subscriptionStatus(s stripe.SubscriptionStatus) types.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return types.SubStatusActive
	case stripe.SubscriptionStatusTrialing:
		return types.SubStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return types.SubStatusPastDue
	case stripe.SubscriptionStatusIncomplete:
		return types.SubStatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired, stripe.SubscriptionStatusCanceled:
		return types.SubStatusCanceled
	default:
		return types.SubStatusIncomplete
	}
}

// stripeEvent holds the fields read from checkout session, subscription, and
// invoice payloads. Customer is the unexpanded ID Stripe sends in webhooks.
type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeObject `json:"object"`
	} `json:"data"`
}

type stripeObject struct {
	ID                  string            `json:"id"`
	ClientReferenceID   string            `json:"client_reference_id"`
	Customer            string            `json:"customer"`
	Status              string            `json:"status"`
	Metadata            map[string]string `json:"metadata"`
	SubscriptionDetails *struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	Items struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}
