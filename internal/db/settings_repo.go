package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"greenquote/internal/types"
)

// SettingsRepository stores each account's pricing configuration as a single
// JSONB document, so a read or write never observes a half-updated schedule.
type SettingsRepository struct {
	db DBTX
}

func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns ErrCodeNotFoundSettings when the account has no settings row.
func (r *SettingsRepository) Get(ctx context.Context, accountID string) (*types.AccountSettings, error) {
	var s types.AccountSettings
	err := r.db.QueryRow(ctx,
		`SELECT account_id, pricing_config, updated_at
		 FROM account_settings WHERE account_id = $1`,
		accountID,
	).Scan(&s.AccountID, &s.Pricing, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSettings, "pricing settings not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load pricing settings", err)
	}
	return &s, nil
}

// Put replaces the configuration unconditionally, creating the row if needed.
func (r *SettingsRepository) Put(ctx context.Context, accountID string, cfg types.PricingConfiguration) (*types.AccountSettings, error) {
	s := types.AccountSettings{AccountID: accountID}
	err := r.db.QueryRow(ctx,
		`INSERT INTO account_settings (account_id, pricing_config, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (account_id)
		 DO UPDATE SET pricing_config = EXCLUDED.pricing_config, updated_at = NOW()
		 RETURNING pricing_config, updated_at`,
		accountID,
		cfg,
	).Scan(&s.Pricing, &s.UpdatedAt)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to save pricing settings", err)
	}
	return &s, nil
}

// Update replaces the configuration only if it has not changed since
// expectedUpdatedAt. A lost race returns ErrCodeConflictConcurrent.
func (r *SettingsRepository) Update(
	ctx context.Context,
	accountID string,
	cfg types.PricingConfiguration,
	expectedUpdatedAt time.Time,
) (*types.AccountSettings, error) {
	s := types.AccountSettings{AccountID: accountID}
	err := r.db.QueryRow(ctx,
		`UPDATE account_settings
		 SET pricing_config = $2, updated_at = NOW()
		 WHERE account_id = $1 AND updated_at = $3
		 RETURNING pricing_config, updated_at`,
		accountID,
		cfg,
		expectedUpdatedAt,
	).Scan(&s.Pricing, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeConflictConcurrent,
				"pricing settings were changed by another request; reload and retry", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update pricing settings", err)
	}
	return &s, nil
}
