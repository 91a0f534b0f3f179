package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"greenquote/internal/types"
)

// APIKeyRepository provides data access for the api_keys table. Only bcrypt
// hashes are stored.
type APIKeyRepository struct {
	db DBTX
}

func NewAPIKeyRepository(db DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `id, account_id, key_hash, name, last_used_at, revoked_at, created_at`

func scanAPIKey(row pgx.Row) (*types.APIKey, error) {
	var key types.APIKey
	err := row.Scan(
		&key.ID,
		&key.AccountID,
		&key.KeyHash,
		&key.Name,
		&key.LastUsedAt,
		&key.RevokedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// Create inserts a key. key.KeyHash must already be hashed.
func (r *APIKeyRepository) Create(ctx context.Context, key *types.APIKey) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_keys (id, account_id, key_hash, name, created_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`,
		key.ID,
		key.AccountID,
		key.KeyHash,
		key.Name,
		nilIfZeroTime(key.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictConcurrent, "api key id already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create api key", err)
	}
	return nil
}

// GetByID looks a key up without an account filter; the caller verifies the
// secret before trusting the returned account.
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*types.APIKey, error) {
	key, err := scanAPIKey(r.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAPIKey, "api key not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve api key", err)
	}
	return key, nil
}

// TouchLastUsed records a successful authentication.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update api key usage", err)
	}
	return nil
}

// Revoke disables a key belonging to accountID.
func (r *APIKeyRepository) Revoke(ctx context.Context, id, accountID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW()
		 WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL`,
		id,
		accountID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to revoke api key", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAPIKey, "api key not found or already revoked", nil)
	}
	return nil
}
