package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"greenquote/internal/auth"
	"greenquote/internal/config"
	"greenquote/internal/core"
	"greenquote/internal/types"
)

// AccountProvisioner atomically creates an account with its settings and
// first API key.
type AccountProvisioner interface {
	Provision(ctx context.Context, account *types.Account, pricing types.PricingConfiguration, key *types.APIKey) (*types.AccountSettings, error)
}

// AccountProfileStore reads and updates account profiles.
type AccountProfileStore interface {
	GetByID(ctx context.Context, id string) (*types.Account, error)
	UpdateProfile(ctx context.Context, a *types.Account) error
}

// CreateAccountRequest is the body of POST /v1/accounts.
type CreateAccountRequest struct {
	Name                   string `json:"name" validate:"required,max=200"`
	NotificationEmail      string `json:"notification_email" validate:"required,email"`
	WebhookURL             string `json:"webhook_url" validate:"omitempty,ssrf_url"`
	EmailForwardingEnabled *bool  `json:"email_forwarding_enabled"`
}

// UpdateAccountRequest is the body of PATCH /v1/account. Absent fields are
// left unchanged; an empty webhook_url removes the webhook.
type UpdateAccountRequest struct {
	Name                   *string `json:"name" validate:"omitempty,min=1,max=200"`
	NotificationEmail      *string `json:"notification_email" validate:"omitempty,email"`
	WebhookURL             *string `json:"webhook_url" validate:"omitempty,ssrf_url"`
	EmailForwardingEnabled *bool   `json:"email_forwarding_enabled"`
	RotateWebhookSecret    bool    `json:"rotate_webhook_secret"`
}

// ProvisionResponse carries the one-time credentials of a new account.
type ProvisionResponse struct {
	Account       *types.Account         `json:"account"`
	APIKey        string                 `json:"api_key"`
	WebhookSecret string                 `json:"webhook_secret"`
	Pricing       *types.AccountSettings `json:"pricing"`
	Billing       types.BillingStatus    `json:"billing"`
}

// AccountResponse is an account with a freshly issued webhook secret, when
// one was generated by the request.
type AccountResponse struct {
	*types.Account
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// AccountHandler serves signup and the account profile.
type AccountHandler struct {
	provisioner AccountProvisioner
	accounts    AccountProfileStore
	hasher      auth.Hasher
	pricing     config.PricingConfig
	clock       types.Clock
	validator   *core.Validator
	logger      *slog.Logger
}

func NewAccountHandler(
	provisioner AccountProvisioner,
	accounts AccountProfileStore,
	hasher auth.Hasher,
	pricingCfg config.PricingConfig,
	clock types.Clock,
	v *core.Validator,
	l *slog.Logger,
) *AccountHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	return &AccountHandler{
		provisioner: provisioner,
		accounts:    accounts,
		hasher:      hasher,
		pricing:     pricingCfg,
		clock:       clock,
		validator:   v,
		logger:      l,
	}
}

// RegisterPublicRoutes mounts signup.
func (h *AccountHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/accounts", h.Create)
}

// RegisterRoutes mounts the authenticated profile routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/account", h.Get)
	r.Patch("/account", h.Update)
}

// Create handles POST /v1/accounts. The account starts on a starter trial
// with the default pricing schedule. The API key and webhook secret are only
// ever returned here.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	secret, err := newWebhookSecret()
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate webhook secret", err))
		return
	}

	now := h.clock.Now()
	trialEnds := now.Add(time.Duration(h.trialDays()) * 24 * time.Hour)
	account := &types.Account{
		ID:                     newID("acct_"),
		Name:                   req.Name,
		NotificationEmail:      req.NotificationEmail,
		WebhookURL:             req.WebhookURL,
		WebhookSecret:          types.SecretString(secret),
		EmailForwardingEnabled: req.EmailForwardingEnabled == nil || *req.EmailForwardingEnabled,
		Plan:                   types.PlanStarter,
		SubscriptionStatus:     types.SubStatusTrialing,
		TrialEndsAt:            &trialEnds,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	plaintext, key, err := auth.NewKey(h.hasher, account.ID, "default")
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate api key", err))
		return
	}
	key.CreatedAt = now

	settings, err := h.provisioner.Provision(r.Context(), account, defaultPricing(h.pricing), key)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "account provisioning failed", "error", err)
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account provisioned",
		"account_id", account.ID,
		"trial_ends_at", trialEnds,
	)

	core.Respond(w, r, http.StatusCreated, ProvisionResponse{
		Account:       account,
		APIKey:        plaintext,
		WebhookSecret: secret,
		Pricing:       settings,
		Billing:       billingStatus(account, now),
	}, nil)
}

func (h *AccountHandler) trialDays() int {
	if h.pricing.TrialDays > 0 {
		return h.pricing.TrialDays
	}
	return 14
}

// Get handles GET /v1/account.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, account, nil)
}

// Update handles PATCH /v1/account.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req UpdateAccountRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.NotificationEmail != nil {
		account.NotificationEmail = *req.NotificationEmail
	}
	if req.WebhookURL != nil {
		account.WebhookURL = *req.WebhookURL
	}
	if req.EmailForwardingEnabled != nil {
		account.EmailForwardingEnabled = *req.EmailForwardingEnabled
	}

	// The repository keeps the stored secret when this is empty.
	account.WebhookSecret = ""
	var issued string
	if req.RotateWebhookSecret {
		if issued, err = newWebhookSecret(); err != nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate webhook secret", err))
			return
		}
		account.WebhookSecret = types.SecretString(issued)
	}

	if err := h.accounts.UpdateProfile(r.Context(), account); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "account updated",
		"account_id", accountID,
		"webhook_secret_rotated", issued != "",
	)
	core.Respond(w, r, http.StatusOK, AccountResponse{Account: account, WebhookSecret: issued}, nil)
}
