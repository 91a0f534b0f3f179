package core

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenquote/internal/types"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRecoverer_ReturnsErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	h := RequestIDMiddleware(s.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "req-\"quoted\"")
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
	assert.Equal(t, "req-\"quoted\"", detail.RequestID)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = types.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "client-id")
	h.ServeHTTP(w, r)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestRequestLogger_RedactsHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestLogger(logger, defaultRedactedHeaders)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
	r.Header.Set("Authorization", "Bearer gq_key1_secret")
	r.Header.Set("User-Agent", "field-app/2.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	out := buf.String()
	assert.NotContains(t, out, "gq_key1_secret")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "field-app/2.0")
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"level":"WARN"`)
}

func TestCORSMiddleware(t *testing.T) {
	h := NewCORSMiddleware([]string{"https://app.greenquote.test"})(http.HandlerFunc(okHandler))

	t.Run("allowed origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://app.greenquote.test")
		h.ServeHTTP(w, r)
		assert.Equal(t, "https://app.greenquote.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
	})

	t.Run("other origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.test")
		h.ServeHTTP(w, r)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/v1/quotes", nil)
		r.Header.Set("Origin", "https://app.greenquote.test")
		r.Header.Set("Access-Control-Request-Method", "POST")
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), OperatorHeader)
	})
}

func TestCompressionMiddleware(t *testing.T) {
	payload := strings.Repeat(`{"area":"5000","price":"60.00"}`, 100)
	h := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Encoding", "gzip")
	h.ServeHTTP(w, r)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	var actor types.Actor
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ = types.GetActor(r.Context())
		assert.NotNil(t, types.LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		operator string
		wantCode int
		wantErr  types.ErrorCode
	}{
		{name: "missing header", wantCode: http.StatusUnauthorized, wantErr: types.ErrCodeAuthTokenMissing},
		{name: "wrong scheme", header: "Basic abc", wantCode: http.StatusUnauthorized, wantErr: types.ErrCodeAuthTokenMissing},
		{name: "bad token", header: "Bearer gq_key1_wrong", wantCode: http.StatusUnauthorized, wantErr: types.ErrCodeAuthTokenInvalid},
		{name: "valid", header: "bearer gq_key1_secret", operator: "Sam", wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/v1/quotes", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.operator != "" {
				r.Header.Set(OperatorHeader, tt.operator)
			}
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, string(tt.wantErr), decodeError(t, w).Code)
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
				return
			}
			assert.Equal(t, "acct_1", actor.AccountID)
			assert.Equal(t, "Sam", actor.Operator)
		})
	}
}

func TestAuthMiddleware_RevokedAndStoreErrors(t *testing.T) {
	s := newTestServer(t)
	stub := s.Authenticator.(*stubAuthenticator)
	h := s.AuthMiddleware(http.HandlerFunc(okHandler))

	stub.err = types.NewAppError(types.ErrCodeAuthTokenRevoked, "API key has been revoked", nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer gq_key1_secret")
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenRevoked), decodeError(t, w).Code)

	stub.err = types.NewAppError(types.ErrCodeInternalDB, "failed to load key", errors.New("timeout"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(types.ErrCodeInternalDB), decodeError(t, w).Code)
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", extractClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", extractClientIP(r))
}
