// Package auth issues and verifies account API keys.
//
// A key is presented as "gq_<keyID>_<secret>". Only a bcrypt hash of the
// secret is stored; the key ID locates the row so verification costs exactly
// one hash comparison.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"greenquote/internal/types"
)

const (
	// KeyPrefix marks every GreenQuote API key.
	KeyPrefix = "gq_"

	keyIDPrefix  = "key_"
	secretBytes  = 24
	bcryptCost   = bcrypt.DefaultCost
	maxOperator  = 100
	touchTimeout = 2 * time.Second
)

// Hasher abstracts bcrypt for testability.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) error
}

// BcryptHasher is the production Hasher.
type BcryptHasher struct{}

func (BcryptHasher) Hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (BcryptHasher) Compare(hash, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}

// KeyStore is the persistence the authenticator needs.
type KeyStore interface {
	GetByID(ctx context.Context, id string) (*types.APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// ParseKey splits a presented key into its ID and secret.
func ParseKey(token string) (keyID, secret string, ok bool) {
	rest, found := strings.CutPrefix(token, KeyPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	keyID, secret = rest[:i], rest[i+1:]
	if !strings.HasPrefix(keyID, keyIDPrefix) {
		return "", "", false
	}
	return keyID, secret, true
}

// NewKey mints a key for accountID. The plaintext is returned once and must
// be shown to the caller; the returned record carries only the hash.
func NewKey(h Hasher, accountID, name string) (string, *types.APIKey, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate api key secret: %w", err)
	}
	secret := hex.EncodeToString(buf)
	id := keyIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")

	hash, err := h.Hash(secret)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}
	key := &types.APIKey{
		ID:        id,
		AccountID: accountID,
		KeyHash:   hash,
		Name:      name,
	}
	return KeyPrefix + id + "_" + secret, key, nil
}

// Authenticator resolves bearer tokens to actors.
type Authenticator struct {
	keys   KeyStore
	hasher Hasher
	logger *slog.Logger
}

func NewAuthenticator(keys KeyStore, hasher Hasher, logger *slog.Logger) *Authenticator {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{keys: keys, hasher: hasher, logger: logger}
}

// Authenticate verifies token and returns the acting principal. operator is
// the optional X-Operator-Name value.
func (a *Authenticator) Authenticate(ctx context.Context, token, operator string) (types.Actor, error) {
	invalid := types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid API key", nil)

	keyID, secret, ok := ParseKey(token)
	if !ok {
		return types.Actor{}, invalid
	}

	key, err := a.keys.GetByID(ctx, keyID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundAPIKey {
			return types.Actor{}, invalid
		}
		return types.Actor{}, err
	}
	if key.RevokedAt != nil {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenRevoked, "API key has been revoked", nil)
	}
	if err := a.hasher.Compare(key.KeyHash, secret); err != nil {
		return types.Actor{}, invalid
	}

	touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
	defer cancel()
	if err := a.keys.TouchLastUsed(touchCtx, key.ID); err != nil {
		a.logger.WarnContext(ctx, "failed to record api key usage",
			slog.String("key_id", key.ID),
			slog.String("error", err.Error()),
		)
	}

	return types.Actor{
		ID:        key.ID,
		Type:      types.ActorTypeAPIKey,
		AccountID: key.AccountID,
		Operator:  SanitizeOperator(operator),
		Source:    string(types.ActorTypeAPIKey),
	}, nil
}

// SanitizeOperator trims the operator name and caps its length.
func SanitizeOperator(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= maxOperator {
		return name
	}
	return string([]rune(name)[:maxOperator])
}
