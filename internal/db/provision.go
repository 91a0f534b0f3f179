package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"greenquote/internal/types"
)

// Provisioner creates a new tenant in one transaction: the account row, its
// default pricing settings, and its first API key.
type Provisioner struct {
	pool   TxBeginner
	logger *slog.Logger
}

func NewProvisioner(pool TxBeginner, logger *slog.Logger) *Provisioner {
	return &Provisioner{pool: pool, logger: logger}
}

// Provision writes account, settings and key atomically. On success
// key.CreatedAt and the returned settings timestamps are populated.
func (p *Provisioner) Provision(
	ctx context.Context,
	account *types.Account,
	pricing types.PricingConfiguration,
	key *types.APIKey,
) (*types.AccountSettings, error) {
	var settings *types.AccountSettings
	err := WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if err := NewAccountRepository(tx, p.logger).Create(ctx, account); err != nil {
			return err
		}
		s, err := NewSettingsRepository(tx).Put(ctx, account.ID, pricing)
		if err != nil {
			return err
		}
		settings = s
		return NewAPIKeyRepository(tx).Create(ctx, key)
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to provision account", err)
	}
	return settings, nil
}
