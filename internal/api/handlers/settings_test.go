package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenquote/internal/config"
	"greenquote/internal/pricing"
	"greenquote/internal/types"
)

func storedSettings(accountID string) *types.AccountSettings {
	return &types.AccountSettings{
		AccountID: accountID,
		Pricing:   pricing.DefaultConfiguration(),
		UpdatedAt: testNow.Add(-time.Hour),
	}
}

func newSettingsHandler(store *mockSettingsStore) *SettingsHandler {
	return NewSettingsHandler(store, config.PricingConfig{DefaultMinPricePerVisit: decimal.NewFromInt(40)}, testValidator(), testLogger())
}

func TestSettingsHandler_Get(t *testing.T) {
	h := newSettingsHandler(&mockSettingsStore{
		getFn: func(ctx context.Context, accountID string) (*types.AccountSettings, error) {
			return storedSettings(accountID), nil
		},
	})
	rec := serve(h.RegisterRoutes, withActor(jsonRequest(t, http.MethodGet, "/settings/pricing", nil), "acct_1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.AccountSettings
	decodeData(t, rec, &got)
	assert.Equal(t, "acct_1", got.AccountID)
	assert.Len(t, got.Pricing.Tiers, len(pricing.DefaultTiers()))
}

func TestSettingsHandler_Get_NotFound(t *testing.T) {
	h := newSettingsHandler(&mockSettingsStore{})
	rec := serve(h.RegisterRoutes, withActor(jsonRequest(t, http.MethodGet, "/settings/pricing", nil), "acct_1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsHandler_Patch(t *testing.T) {
	var gotCfg types.PricingConfiguration
	var gotExpected time.Time
	store := &mockSettingsStore{
		getFn: func(ctx context.Context, accountID string) (*types.AccountSettings, error) {
			return storedSettings(accountID), nil
		},
		updateFn: func(ctx context.Context, accountID string, cfg types.PricingConfiguration, expected time.Time) (*types.AccountSettings, error) {
			gotCfg, gotExpected = cfg, expected
			return &types.AccountSettings{AccountID: accountID, Pricing: cfg, UpdatedAt: testNow}, nil
		},
	}
	h := newSettingsHandler(store)

	body := `{
		"use_tiered_pricing": false,
		"flat_rate_per_unit_area": "0.0125",
		"tiers": [
			{"up_to_area": "10000", "rate_per_unit_area": "0.01"},
			{"up_to_area": null, "rate_per_unit_area": "0.005"}
		]
	}`
	rec := serve(h.RegisterRoutes, withActor(jsonRequest(t, http.MethodPatch, "/settings/pricing", body), "acct_1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.False(t, gotCfg.UseTieredPricing)
	assert.True(t, gotCfg.FlatRatePerUnitArea.Equal(decimal.RequireFromString("0.0125")))
	require.Len(t, gotCfg.Tiers, 2)
	assert.True(t, gotCfg.Tiers[1].IsUnbounded())
	assert.Equal(t, testNow.Add(-time.Hour), gotExpected)

	defaults := pricing.DefaultConfiguration()
	assert.True(t, gotCfg.MinPricePerVisit.Equal(defaults.MinPricePerVisit), "absent fields are kept")
	assert.Len(t, gotCfg.AddOns, len(defaults.AddOns))
}

func TestSettingsHandler_Patch_InvalidTiers(t *testing.T) {
	h := newSettingsHandler(&mockSettingsStore{
		getFn: func(ctx context.Context, accountID string) (*types.AccountSettings, error) {
			return storedSettings(accountID), nil
		},
		updateFn: func(context.Context, string, types.PricingConfiguration, time.Time) (*types.AccountSettings, error) {
			t.Fatal("invalid configuration must not be written")
			return nil, nil
		},
	})

	body := `{"tiers": [
		{"up_to_area": "5000", "rate_per_unit_area": "0.01"},
		{"up_to_area": "5000", "rate_per_unit_area": "0.008"},
		{"up_to_area": null, "rate_per_unit_area": "0.005"}
	]}`
	rec := serve(h.RegisterRoutes, withActor(jsonRequest(t, http.MethodPatch, "/settings/pricing", body), "acct_1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidTiers), errorCode(t, rec))
}

func TestSettingsHandler_Patch_Conflict(t *testing.T) {
	h := newSettingsHandler(&mockSettingsStore{
		getFn: func(ctx context.Context, accountID string) (*types.AccountSettings, error) {
			return storedSettings(accountID), nil
		},
		updateFn: func(context.Context, string, types.PricingConfiguration, time.Time) (*types.AccountSettings, error) {
			return nil, types.NewAppError(types.ErrCodeConflictConcurrent, "settings changed", nil)
		},
	})
	rec := serve(h.RegisterRoutes, withActor(jsonRequest(t, http.MethodPatch, "/settings/pricing", `{"base_fee":"5"}`), "acct_1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettingsHandler_Reset(t *testing.T) {
	var got types.PricingConfiguration
	h := newSettingsHandler(&mockSettingsStore{
		putFn: func(ctx context.Context, accountID string, cfg types.PricingConfiguration) (*types.AccountSettings, error) {
			got = cfg
			return &types.AccountSettings{AccountID: accountID, Pricing: cfg, UpdatedAt: testNow}, nil
		},
	})
	rec := serve(h.RegisterRoutes, withActor(jsonRequest(t, http.MethodPost, "/settings/pricing/reset", nil), "acct_1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.MinPricePerVisit.Equal(decimal.NewFromInt(40)))
	assert.Len(t, got.Tiers, len(pricing.DefaultTiers()))
	assert.True(t, got.UseTieredPricing)
}

func TestPricingPatch_ApplyDoesNotAlias(t *testing.T) {
	base := pricing.DefaultConfiguration()
	tiers := []types.PricingTier{types.UnboundedTier(decimal.RequireFromString("0.01"))}
	out := PricingPatch{Tiers: &tiers}.Apply(base)

	tiers[0].RatePerUnitArea = decimal.NewFromInt(9)
	assert.True(t, out.Tiers[0].RatePerUnitArea.Equal(decimal.RequireFromString("0.01")))
	assert.Len(t, base.Tiers, len(pricing.DefaultTiers()))
}
