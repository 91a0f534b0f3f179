package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenquote/internal/types"
)

type subscriptionCall struct {
	accountID string
	plan      types.PlanTier
	status    types.SubscriptionStatus
	eventAt   time.Time
}

func newWebhookHarness(verifyErr error) (*StripeWebhookHandler, *mockAccountStore, *[]subscriptionCall) {
	calls := &[]subscriptionCall{}
	store := &mockAccountStore{
		updateSubscriptionFn: func(ctx context.Context, id string, plan types.PlanTier, status types.SubscriptionStatus, eventAt time.Time) error {
			*calls = append(*calls, subscriptionCall{id, plan, status, eventAt})
			return nil
		},
		updateStatusFn: func(ctx context.Context, id string, status types.SubscriptionStatus) error {
			*calls = append(*calls, subscriptionCall{accountID: id, status: status})
			return nil
		},
		getByStripeCustomerIDFn: func(ctx context.Context, customerID string) (*types.Account, error) {
			if customerID == "cus_known" {
				return activeAccount("acct_cus"), nil
			}
			return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
		},
	}
	h := NewStripeWebhookHandler(&mockVerifier{err: verifyErr}, store, &mockBillingService{}, "whsec_test", testLogger())
	return h, store, calls
}

func postStripeEvent(t *testing.T, h *StripeWebhookHandler, body string) int {
	t.Helper()
	req := jsonRequest(t, http.MethodPost, "/webhooks/stripe", body)
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	return serve(h.RegisterRoutes, req).Code
}

func TestStripeWebhook_CheckoutCompleted(t *testing.T) {
	h, store, calls := newWebhookHarness(nil)
	var linked string
	store.setStripeCustomerIDFn = func(ctx context.Context, id, customerID string) error {
		linked = id + ":" + customerID
		return nil
	}

	code := postStripeEvent(t, h, `{
		"id": "evt_1", "type": "checkout.session.completed", "created": 1773144000,
		"data": {"object": {"id": "cs_1", "client_reference_id": "acct_1", "customer": "cus_1",
			"metadata": {"account_id": "acct_1", "plan": "professional"}}}
	}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "acct_1:cus_1", linked)
	require.Len(t, *calls, 1)
	assert.Equal(t, subscriptionCall{"acct_1", types.PlanProfessional, types.SubStatusActive, time.Unix(1773144000, 0).UTC()}, (*calls)[0])
}

func TestStripeWebhook_SubscriptionUpdated(t *testing.T) {
	tests := []struct {
		name   string
		status string
		price  string
		want   subscriptionCall
	}{
		{"active pro", "active", "price_pro", subscriptionCall{accountID: "acct_1", plan: types.PlanProfessional, status: types.SubStatusActive}},
		{"unpaid is past due", "unpaid", "price_starter", subscriptionCall{accountID: "acct_1", plan: types.PlanStarter, status: types.SubStatusPastDue}},
		{"incomplete expired is canceled", "incomplete_expired", "price_starter", subscriptionCall{accountID: "acct_1", plan: types.PlanStarter, status: types.SubStatusCanceled}},
		{"unknown price updates status only", "past_due", "price_legacy", subscriptionCall{accountID: "acct_1", status: types.SubStatusPastDue}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, calls := newWebhookHarness(nil)
			code := postStripeEvent(t, h, `{
				"id": "evt_2", "type": "customer.subscription.updated", "created": 1773144000,
				"data": {"object": {"id": "sub_1", "status": "`+tt.status+`", "customer": "cus_1",
					"metadata": {"account_id": "acct_1"},
					"items": {"data": [{"price": {"id": "`+tt.price+`"}}]}}}
			}`)
			assert.Equal(t, http.StatusOK, code)
			require.Len(t, *calls, 1)
			got := (*calls)[0]
			got.eventAt = time.Time{}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripeWebhook_SubscriptionDeleted(t *testing.T) {
	h, _, calls := newWebhookHarness(nil)
	code := postStripeEvent(t, h, `{
		"id": "evt_3", "type": "customer.subscription.deleted", "created": 1773144000,
		"data": {"object": {"id": "sub_1", "status": "canceled", "customer": "cus_known", "metadata": {}}}
	}`)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, *calls, 1)
	assert.Equal(t, "acct_cus", (*calls)[0].accountID, "falls back to the customer lookup")
	assert.Equal(t, types.PlanStarter, (*calls)[0].plan)
	assert.Equal(t, types.SubStatusCanceled, (*calls)[0].status)
}

func TestStripeWebhook_Invoices(t *testing.T) {
	tests := []struct {
		eventType string
		want      types.SubscriptionStatus
	}{
		{"invoice.payment_succeeded", types.SubStatusActive},
		{"invoice.payment_failed", types.SubStatusPastDue},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			h, _, calls := newWebhookHarness(nil)
			code := postStripeEvent(t, h, `{
				"id": "evt_4", "type": "`+tt.eventType+`", "created": 1773144000,
				"data": {"object": {"id": "in_1", "customer": "cus_1",
					"subscription_details": {"metadata": {"account_id": "acct_7"}}}}
			}`)
			assert.Equal(t, http.StatusOK, code)
			require.Len(t, *calls, 1)
			assert.Equal(t, "acct_7", (*calls)[0].accountID)
			assert.Equal(t, tt.want, (*calls)[0].status)
		})
	}
}

func TestStripeWebhook_ProcessingErrorsStill200(t *testing.T) {
	h, _, calls := newWebhookHarness(nil)
	code := postStripeEvent(t, h, `{
		"id": "evt_5", "type": "customer.subscription.deleted", "created": 1,
		"data": {"object": {"id": "sub_1", "customer": "cus_unknown"}}
	}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, *calls)

	assert.Equal(t, http.StatusOK, postStripeEvent(t, h, `{"id": "evt_6", "type": "charge.refunded", "data": {"object": {}}}`))
}

func TestStripeWebhook_SignatureFailures(t *testing.T) {
	h, _, calls := newWebhookHarness(errors.New("bad signature"))
	assert.Equal(t, http.StatusUnauthorized, postStripeEvent(t, h, `{"id":"evt_7"}`))

	req := jsonRequest(t, http.MethodPost, "/webhooks/stripe", `{"id":"evt_8"}`)
	rec := serve(h.RegisterRoutes, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), errorCode(t, rec))
	assert.Empty(t, *calls)
}
