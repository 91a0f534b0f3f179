package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"greenquote/internal/types"
)

const (
	defaultQuoteListLimit = 20
	maxQuoteListLimit     = 100
)

// QuoteRepository provides data access for the quotes table. Quotes are
// written once; only the status and email-delivery columns are updated.
type QuoteRepository struct {
	db DBTX
}

func NewQuoteRepository(db DBTX) *QuoteRepository {
	return &QuoteRepository{db: db}
}

const quoteColumns = `id, account_id, customer_name, email, phone, property_address,
	property_type, notes, area, area_source, service, addons, frequency, pricing_mode,
	tiers_snapshot, flat_rate_snapshot, breakdown, area_price, base_price, add_ons_total,
	price_per_visit, monthly_estimate, status, send_to_customer, created_by,
	email_sent_at, created_at, status_updated_at`

// scanQuote reads one row in quoteColumns order. Nullable lead columns are
// selected through COALESCE, so they scan straight into strings.
func scanQuote(row pgx.Row) (*types.Quote, error) {
	var q types.Quote
	err := row.Scan(
		&q.ID,
		&q.AccountID,
		&q.CustomerName,
		&q.Email,
		&q.Phone,
		&q.PropertyAddress,
		&q.PropertyType,
		&q.Notes,
		&q.Area,
		&q.AreaSource,
		&q.Service,
		&q.AddOns,
		&q.Frequency,
		&q.PricingMode,
		&q.TiersSnapshot,
		&q.FlatRateSnapshot,
		&q.Breakdown,
		&q.AreaPrice,
		&q.BasePrice,
		&q.AddOnsTotal,
		&q.PricePerVisit,
		&q.MonthlyEstimate,
		&q.Status,
		&q.SendToCustomer,
		&q.CreatedBy,
		&q.EmailSentAt,
		&q.CreatedAt,
		&q.StatusUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// selectQuote wraps the nullable text columns so NULL reads back as "".
const selectQuote = `SELECT id, account_id, customer_name,
	COALESCE(email, ''), COALESCE(phone, ''), COALESCE(property_address, ''),
	COALESCE(property_type, ''), COALESCE(notes, ''),
	area, area_source, service, addons, frequency, pricing_mode,
	tiers_snapshot, flat_rate_snapshot, breakdown, area_price, base_price, add_ons_total,
	price_per_visit, monthly_estimate, status, send_to_customer, COALESCE(created_by, ''),
	email_sent_at, created_at, status_updated_at
	FROM quotes`

// Create persists a new quote. The status is forced to pending.
func (r *QuoteRepository) Create(ctx context.Context, q *types.Quote) error {
	q.Status = types.QuoteStatusPending
	err := r.db.QueryRow(ctx,
		`INSERT INTO quotes (`+quoteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25,
		         NULL, COALESCE($26, NOW()), NULL)
		 RETURNING created_at`,
		q.ID,
		q.AccountID,
		q.CustomerName,
		nilIfEmpty(q.Email),
		nilIfEmpty(q.Phone),
		nilIfEmpty(q.PropertyAddress),
		nilIfEmpty(string(q.PropertyType)),
		nilIfEmpty(q.Notes),
		q.Area,
		q.AreaSource,
		q.Service,
		q.AddOns,
		q.Frequency,
		q.PricingMode,
		q.TiersSnapshot,
		q.FlatRateSnapshot,
		q.Breakdown,
		q.AreaPrice,
		q.BasePrice,
		q.AddOnsTotal,
		q.PricePerVisit,
		q.MonthlyEstimate,
		q.Status,
		q.SendToCustomer,
		nilIfEmpty(q.CreatedBy),
		nilIfZeroTime(q.CreatedAt),
	).Scan(&q.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictConcurrent, "quote id already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create quote", err)
	}
	return nil
}

// GetByID returns a quote owned by accountID.
func (r *QuoteRepository) GetByID(ctx context.Context, accountID, id string) (*types.Quote, error) {
	q, err := scanQuote(r.db.QueryRow(ctx,
		selectQuote+` WHERE id = $1 AND account_id = $2`,
		id,
		accountID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundQuote, "quote not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve quote", err)
	}
	return q, nil
}

// List returns the account's quotes newest first, paginated by a keyset
// cursor over (created_at, id).
func (r *QuoteRepository) List(ctx context.Context, accountID string, f types.QuoteFilter) ([]*types.Quote, types.PageInfo, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQuoteListLimit
	}
	if limit > maxQuoteListLimit {
		limit = maxQuoteListLimit
	}

	conds := []string{"account_id = $1"}
	args := []any{accountID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		conds = append(conds, "status = "+next(f.Status))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= "+next(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at < "+next(f.Until))
	}
	if f.Cursor != "" {
		createdAt, id, err := decodeCursor(f.Cursor)
		if err != nil {
			return nil, types.PageInfo{}, err
		}
		tsArg := next(createdAt)
		idArg := next(id)
		conds = append(conds, fmt.Sprintf("(created_at, id) < (%s, %s)", tsArg, idArg))
	}

	query := selectQuote +
		" WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY created_at DESC, id DESC LIMIT " + next(limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list quotes", err)
	}
	defer rows.Close()

	quotes := make([]*types.Quote, 0, limit)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan quote row", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, types.PageInfo{}, types.NewAppError(types.ErrCodeInternalDB, "error iterating quote rows", err)
	}

	var page types.PageInfo
	if len(quotes) > limit {
		quotes = quotes[:limit]
		last := quotes[len(quotes)-1]
		page.HasMore = true
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return quotes, page, nil
}

// UpdateStatus moves a pending quote to won or lost. The transition is
// guarded in SQL so two concurrent updates cannot both succeed.
func (r *QuoteRepository) UpdateStatus(ctx context.Context, accountID, id string, status types.QuoteStatus) (*types.Quote, error) {
	if !types.QuoteStatusPending.CanTransitionTo(status) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("status must be %q or %q", types.QuoteStatusWon, types.QuoteStatusLost), nil)
	}

	var updatedAt time.Time
	err := r.db.QueryRow(ctx,
		`UPDATE quotes SET status = $1, status_updated_at = NOW()
		 WHERE id = $2 AND account_id = $3 AND status = 'pending'
		 RETURNING status_updated_at`,
		status,
		id,
		accountID,
	).Scan(&updatedAt)
	if err == nil {
		return r.GetByID(ctx, accountID, id)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update quote status", err)
	}

	// No row updated: either the quote does not exist or it is already final.
	existing, getErr := r.GetByID(ctx, accountID, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictQuoteFinalized,
		"quote status is already final", nil,
		map[string]any{"status": existing.Status})
}

// MarkEmailSent stamps the first successful email delivery. Later calls keep
// the original timestamp.
func (r *QuoteRepository) MarkEmailSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quotes SET email_sent_at = $1 WHERE id = $2 AND email_sent_at IS NULL`,
		at,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark quote email sent", err)
	}
	return nil
}

// CountCreatedBetween counts quotes created in [start, end).
func (r *QuoteRepository) CountCreatedBetween(ctx context.Context, accountID string, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM quotes
		 WHERE account_id = $1 AND created_at >= $2 AND created_at < $3`,
		accountID,
		start,
		end,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count quotes", err)
	}
	return n, nil
}

// ListCreatedBetween streams every quote created in [start, end) across all
// accounts, ordered by account then creation time, calling fn per row.
func (r *QuoteRepository) ListCreatedBetween(ctx context.Context, start, end time.Time, fn func(*types.Quote) error) error {
	rows, err := r.db.Query(ctx,
		selectQuote+` WHERE created_at >= $1 AND created_at < $2
		 ORDER BY account_id, created_at, id`,
		start,
		end,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to list quotes for export", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to scan quote row", err)
		}
		if err := fn(q); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "error iterating quote rows", err)
	}
	return nil
}
