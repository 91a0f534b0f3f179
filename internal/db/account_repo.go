package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"greenquote/internal/types"
)

// AccountRepository provides data access for the accounts table.
type AccountRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewAccountRepository(db DBTX, logger *slog.Logger) *AccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRepository{db: db, logger: logger}
}

const accountColumns = `id, name, notification_email, webhook_url, webhook_secret,
	email_forwarding_enabled, plan, subscription_status, trial_ends_at,
	stripe_customer_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*types.Account, error) {
	var a types.Account
	var email, webhookURL, webhookSecret, stripeID *string

	err := row.Scan(
		&a.ID,
		&a.Name,
		&email,
		&webhookURL,
		&webhookSecret,
		&a.EmailForwardingEnabled,
		&a.Plan,
		&a.SubscriptionStatus,
		&a.TrialEndsAt,
		&stripeID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email != nil {
		a.NotificationEmail = *email
	}
	if webhookURL != nil {
		a.WebhookURL = *webhookURL
	}
	if webhookSecret != nil {
		a.WebhookSecret = types.SecretString(*webhookSecret)
	}
	if stripeID != nil {
		a.StripeCustomerID = *stripeID
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, a *types.Account) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (id, name, notification_email, webhook_url, webhook_secret,
		 email_forwarding_enabled, plan, subscription_status, trial_ends_at,
		 stripe_customer_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()), COALESCE($11, NOW()))`,
		a.ID,
		a.Name,
		nilIfEmpty(a.NotificationEmail),
		nilIfEmpty(a.WebhookURL),
		nilIfEmpty(a.WebhookSecret.Unmask()),
		a.EmailForwardingEnabled,
		a.Plan,
		a.SubscriptionStatus,
		a.TrialEndsAt,
		nilIfEmpty(a.StripeCustomerID),
		nilIfZeroTime(a.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create account", err)
	}
	return nil
}

// GetByID returns ErrCodeNotFoundAccount when no row matches.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve account", err)
	}
	return a, nil
}

// GetByStripeCustomerID resolves the account a Stripe event belongs to.
func (r *AccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE stripe_customer_id = $1`,
		customerID,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "no account for stripe customer", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve account", err)
	}
	return a, nil
}

// UpdateProfile writes the mutable profile fields: name and forwarding
// settings. The webhook secret is only replaced when non-empty.
func (r *AccountRepository) UpdateProfile(ctx context.Context, a *types.Account) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET name = $1,
		     notification_email = $2,
		     webhook_url = $3,
		     webhook_secret = COALESCE($4, webhook_secret),
		     email_forwarding_enabled = $5,
		     updated_at = NOW()
		 WHERE id = $6`,
		a.Name,
		nilIfEmpty(a.NotificationEmail),
		nilIfEmpty(a.WebhookURL),
		nilIfEmpty(a.WebhookSecret.Unmask()),
		a.EmailForwardingEnabled,
		a.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update account", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}

// SetStripeCustomerID links the account to its Stripe customer.
func (r *AccountRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET stripe_customer_id = $1, updated_at = NOW() WHERE id = $2`,
		customerID,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to link stripe customer", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}

// UpdateSubscription applies a plan and status change from a Stripe event.
// Events older than the last applied one are ignored, so out-of-order
// webhook delivery cannot roll an account back.
func (r *AccountRepository) UpdateSubscription(
	ctx context.Context,
	id string,
	plan types.PlanTier,
	status types.SubscriptionStatus,
	eventAt time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET plan = $1,
		     subscription_status = $2,
		     subscription_event_at = $3,
		     updated_at = NOW()
		 WHERE id = $4
		   AND (subscription_event_at IS NULL OR subscription_event_at < $3)`,
		plan,
		status,
		eventAt,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Info("stale or unknown subscription event ignored",
			slog.String("account_id", id),
			slog.Time("event_at", eventAt),
		)
	}
	return nil
}

// UpdateSubscriptionStatus changes only the status, for invoice events that
// do not carry the plan.
func (r *AccountRepository) UpdateSubscriptionStatus(ctx context.Context, id string, status types.SubscriptionStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET subscription_status = $1, updated_at = NOW() WHERE id = $2`,
		status,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}
