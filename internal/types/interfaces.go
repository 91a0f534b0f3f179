package types

import (
	"context"
	"time"
)

// SSRFValidator returns an error when a destination URL must not be called,
// for example because it resolves to a private address.
type SSRFValidator func(url string) error

// ForwardingChannel sends a persisted quote to one kind of destination.
// Workers call Format once per attempt, then Deliver; when Deliver fails,
// ShouldRetry decides between re-queueing and giving up.
type ForwardingChannel interface {
	Type() ChannelType
	Format(ctx context.Context, msg *QuoteMessage) ([]byte, error)
	Deliver(ctx context.Context, msg *QuoteMessage, payload []byte) (*DeliveryResult, error)
	ShouldRetry(err error) bool
}

type Clock interface {
	Now() time.Time
}

// RealClock reports wall-clock time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger is the subset of *slog.Logger the forwarding channels log through.
// NewSlogLogger adapts a *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}
