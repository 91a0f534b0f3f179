// Package handlers contains the HTTP handlers of the GreenQuote API.
//
// Each handler declares the narrow store interfaces it needs and is wired by
// cmd/api. Routes are mounted through the core.Server registrar slices.
package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"greenquote/internal/config"
	"greenquote/internal/pricing"
	"greenquote/internal/types"
)

// AccountReader loads an account by ID.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*types.Account, error)
}

// UsageReporter reports monthly quote consumption.
type UsageReporter interface {
	GetCurrentUsage(ctx context.Context, accountID string) (*types.UsageSnapshot, error)
}

// newID returns prefix followed by a dashless UUIDv4.
func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newWebhookSecret returns a random signing secret for outbound webhooks.
func newWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}

// requireAccountID returns the authenticated account, or an auth error when
// the route was mounted without AuthMiddleware.
func requireAccountID(ctx context.Context) (string, error) {
	if id := types.GetAccountID(ctx); id != "" {
		return id, nil
	}
	return "", types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil)
}

// defaultPricing is the provisioning configuration: the package defaults
// with the deployment's minimum price applied.
func defaultPricing(cfg config.PricingConfig) types.PricingConfiguration {
	c := pricing.DefaultConfiguration()
	if cfg.DefaultMinPricePerVisit.IsPositive() {
		c.MinPricePerVisit = cfg.DefaultMinPricePerVisit
	}
	return c
}
