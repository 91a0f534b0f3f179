package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"greenquote/internal/config"
	"greenquote/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubAuthenticator accepts exactly one token.
type stubAuthenticator struct {
	mu        sync.Mutex
	token     string
	actor     types.Actor
	err       error
	operators []string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token, operator string) (types.Actor, error) {
	s.mu.Lock()
	s.operators = append(s.operators, operator)
	s.mu.Unlock()

	if s.err != nil {
		return types.Actor{}, s.err
	}
	if token != s.token {
		return types.Actor{}, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid API key", nil)
	}
	actor := s.actor
	actor.Operator = operator
	return actor, nil
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Security: config.SecurityConfig{
			CorsAllowedOrigins:   []string{"https://app.greenquote.test"},
			PublicQuoteRateLimit: 2,
		},
		Build: config.BuildInfo{Version: "test"},
	}
	s, err := NewServer(cfg, testLogger(), nil)
	require.NoError(t, err)
	s.Authenticator = &stubAuthenticator{
		token: "gq_key1_secret",
		actor: types.Actor{ID: "key1", Type: types.ActorTypeAPIKey, AccountID: "acct_1", Source: "api_key"},
	}
	return s
}
