package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"greenquote/internal/config"
	"greenquote/internal/core"
	"greenquote/internal/pricing"
	"greenquote/internal/types"
)

// SettingsStore persists the per-account pricing document.
type SettingsStore interface {
	Get(ctx context.Context, accountID string) (*types.AccountSettings, error)
	Put(ctx context.Context, accountID string, cfg types.PricingConfiguration) (*types.AccountSettings, error)
	Update(ctx context.Context, accountID string, cfg types.PricingConfiguration, expectedUpdatedAt time.Time) (*types.AccountSettings, error)
}

// PricingPatch is the body of PATCH /v1/settings/pricing. Every supplied
// field replaces the whole sub-document; absent fields are kept.
type PricingPatch struct {
	UseTieredPricing     *bool                               `json:"use_tiered_pricing"`
	FlatRatePerUnitArea  *decimal.Decimal                    `json:"flat_rate_per_unit_area"`
	Tiers                *[]types.PricingTier                `json:"tiers" validate:"omitempty,max=20"`
	MinPricePerVisit     *decimal.Decimal                    `json:"min_price_per_visit"`
	BaseFee              *decimal.Decimal                    `json:"base_fee"`
	AddOns               *[]types.AddOn                      `json:"add_ons" validate:"omitempty,max=50"`
	FrequencyMultipliers map[types.Frequency]decimal.Decimal `json:"frequency_multipliers"`
}

// Apply returns a copy of cfg with the patch applied.
func (p PricingPatch) Apply(cfg types.PricingConfiguration) types.PricingConfiguration {
	out := cfg.Clone()
	if p.UseTieredPricing != nil {
		out.UseTieredPricing = *p.UseTieredPricing
	}
	if p.FlatRatePerUnitArea != nil {
		out.FlatRatePerUnitArea = *p.FlatRatePerUnitArea
	}
	if p.Tiers != nil {
		out.Tiers = types.CloneTiers(*p.Tiers)
	}
	if p.MinPricePerVisit != nil {
		out.MinPricePerVisit = *p.MinPricePerVisit
	}
	if p.BaseFee != nil {
		out.BaseFee = *p.BaseFee
	}
	if p.AddOns != nil {
		out.AddOns = append([]types.AddOn{}, (*p.AddOns)...)
	}
	if p.FrequencyMultipliers != nil {
		out.FrequencyMultipliers = make(map[types.Frequency]decimal.Decimal, len(p.FrequencyMultipliers))
		for f, m := range p.FrequencyMultipliers {
			out.FrequencyMultipliers[f] = m
		}
	}
	return out
}

// SettingsHandler serves the pricing configuration of the caller's account.
type SettingsHandler struct {
	store     SettingsStore
	defaults  config.PricingConfig
	validator *core.Validator
	logger    *slog.Logger
}

func NewSettingsHandler(store SettingsStore, defaults config.PricingConfig, v *core.Validator, l *slog.Logger) *SettingsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SettingsHandler{store: store, defaults: defaults, validator: v, logger: l}
}

func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/settings/pricing", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Patch)
		r.Post("/reset", h.Reset)
	})
}

// Get handles GET /v1/settings/pricing.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	settings, err := h.store.Get(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, settings, nil)
}

// Patch handles PATCH /v1/settings/pricing. The merged document must pass
// pricing.ValidateConfiguration and is written only if nobody else changed
// it since it was read.
func (h *SettingsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var patch PricingPatch
	if err := core.DecodeJSON(w, r, &patch); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(patch); err != nil {
		core.Error(w, r, err)
		return
	}

	current, err := h.store.Get(r.Context(), accountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	next := patch.Apply(current.Pricing)
	if err := pricing.ValidateConfiguration(next); err != nil {
		core.Error(w, r, pricing.ToAppError(err))
		return
	}

	updated, err := h.store.Update(r.Context(), accountID, next, current.UpdatedAt)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pricing settings updated",
		"account_id", accountID,
		"mode", next.Mode(),
		"tiers", len(next.Tiers),
	)
	core.Respond(w, r, http.StatusOK, updated, nil)
}

// Reset handles POST /v1/settings/pricing/reset.
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	settings, err := h.store.Put(r.Context(), accountID, defaultPricing(h.defaults))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "pricing settings reset to defaults", "account_id", accountID)
	core.Respond(w, r, http.StatusOK, settings, nil)
}
