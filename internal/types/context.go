package types

import (
	"context"
)

// ActorType identifies the kind of entity making a request.
type ActorType string

const (
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypePublic ActorType = "public"
)

// Actor represents the entity performing an operation.
type Actor struct {
	ID        string
	Type      ActorType
	AccountID string
	// Operator names the staff member using a field tool, when supplied.
	Operator string
	Source   string
}

// Attribution returns the value recorded as a quote's created_by. Public
// form submissions carry no attribution.
func (a Actor) Attribution() string {
	if a.Type == ActorTypePublic {
		return ""
	}
	if a.Operator != "" {
		return a.Operator
	}
	return a.ID
}

type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// GetAccountID returns the account of the current actor, or "" when the
// request is unauthenticated.
func GetAccountID(ctx context.Context) string {
	actor, ok := GetActor(ctx)
	if !ok {
		return ""
	}
	return actor.AccountID
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the request-scoped Logger, or nil if none was set.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return nil
}
