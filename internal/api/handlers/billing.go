package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"greenquote/internal/billing"
	"greenquote/internal/core"
	"greenquote/internal/external"
	"greenquote/internal/types"
)

// CreateCheckoutRequest is the body of POST /v1/billing/checkout.
//
// The redirect URLs are built server-side from the dashboard URL so the
// endpoint cannot be used as an open redirect.
type CreateCheckoutRequest struct {
	Plan types.PlanTier `json:"plan" validate:"required"`
}

// CheckoutResponse is the body returned by POST /v1/billing/checkout.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// PortalResponse is the body returned by POST /v1/billing/portal.
type PortalResponse struct {
	PortalURL string `json:"portal_url"`
}

// BillingHandler serves subscription status and the hosted Stripe flows.
type BillingHandler struct {
	service      external.BillingService
	accounts     AccountReader
	usage        UsageReporter
	dashboardURL string
	clock        types.Clock
	validator    *core.Validator
	logger       *slog.Logger
}

func NewBillingHandler(
	service external.BillingService,
	accounts AccountReader,
	usage UsageReporter,
	dashboardURL string,
	clock types.Clock,
	v *core.Validator,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &BillingHandler{
		service:      service,
		accounts:     accounts,
		usage:        usage,
		dashboardURL: strings.TrimSuffix(dashboardURL, "/"),
		clock:        clock,
		validator:    v,
		logger:       l,
	}
}

func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/usage", h.GetUsage)
	r.Route("/billing", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Post("/checkout", h.CreateCheckout)
		r.Post("/portal", h.CreatePortal)
	})
}

// billingStatus is the access summary shown to the account at now.
func billingStatus(account *types.Account, now time.Time) types.BillingStatus {
	return billing.StatusFor(account, now)
}

func (h *BillingHandler) loadAccount(ctx context.Context) (*types.Account, error) {
	accountID, err := requireAccountID(ctx)
	if err != nil {
		return nil, err
	}
	return h.accounts.GetByID(ctx, accountID)
}

// GetStatus handles GET /v1/billing/status.
func (h *BillingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	account, err := h.loadAccount(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, billingStatus(account, h.clock.Now()), nil)
}

// GetUsage handles GET /v1/usage.
func (h *BillingHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	snap, err := h.usage.GetCurrentUsage(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var meta *types.ResponseMeta
	if warning := billing.UsageWarning(snap); warning != "" {
		meta = &types.ResponseMeta{Warnings: []string{warning}}
	}
	core.Respond(w, r, http.StatusOK, snap, meta)
}

// CreateCheckout handles POST /v1/billing/checkout.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	if !billing.IsKnownPlan(req.Plan) {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPlan,
			"unknown plan", nil, map[string]any{"plan": req.Plan}))
		return
	}

	account, err := h.loadAccount(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	urls := types.RedirectURLs{
		SuccessURL: h.dashboardURL + "/billing?checkout=success",
		CancelURL:  h.dashboardURL + "/billing?checkout=canceled",
	}
	checkoutURL, sessionID, err := h.service.CreateCheckoutSession(r.Context(), account, req.Plan, urls)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "checkout session failed",
			"account_id", account.ID,
			"plan", req.Plan,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "checkout session created",
		"account_id", account.ID,
		"plan", req.Plan,
		"session_id", sessionID,
	)
	core.Respond(w, r, http.StatusOK, CheckoutResponse{CheckoutURL: checkoutURL, SessionID: sessionID}, nil)
}

// CreatePortal handles POST /v1/billing/portal.
func (h *BillingHandler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	account, err := h.loadAccount(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	portalURL, err := h.service.CreatePortalSession(r.Context(), account, h.dashboardURL+"/billing")
	if err != nil {
		h.logger.ErrorContext(r.Context(), "portal session failed", "account_id", account.ID, "error", err)
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, PortalResponse{PortalURL: portalURL}, nil)
}
