package core

import (
	"context"
	"time"

	"greenquote/internal/types"
)

// Authenticator resolves a bearer token to the acting principal. operator is
// the raw X-Operator-Name header and may be empty.
//
// Implementations return ErrCodeAuthTokenInvalid for malformed or unknown
// tokens and ErrCodeAuthTokenRevoked for revoked keys.
type Authenticator interface {
	Authenticate(ctx context.Context, token, operator string) (types.Actor, error)
}

// RateLimitStore abstracts the backing store for rate limiting.
type RateLimitStore interface {
	// IncrementAndCheck atomically increments the counter for key and reports
	// whether the limit has been exceeded within the current window.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// HealthProbe is a dependency checked by GET /health.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}
