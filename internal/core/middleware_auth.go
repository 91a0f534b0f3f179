package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"greenquote/internal/types"
)

// OperatorHeader optionally names the staff member behind an API key.
const OperatorHeader = "X-Operator-Name"

// AuthMiddleware requires a Bearer API key. On success the Actor and a
// request-scoped logger are stored in the context. Failures are 401 with
// auth_token_missing, auth_token_invalid or auth_token_revoked.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			s.Logger.ErrorContext(r.Context(), "no authenticator configured")
			Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "authentication unavailable", nil))
			return
		}

		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer API key is required")
			return
		}

		actor, err := s.Authenticator.Authenticate(r.Context(), token, r.Header.Get(OperatorHeader))
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}

		ctx := types.WithActor(r.Context(), actor)
		ctx = types.WithLogger(ctx, types.NewSlogLogger(s.Logger.With(
			slog.String("request_id", types.GetRequestID(ctx)),
			slog.String("account_id", actor.AccountID),
			slog.String("actor_id", actor.ID),
		)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken returns the token of a "Bearer <token>" header. The
// scheme is case-insensitive per RFC 7235.
func extractBearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenRevoked, types.ErrCodeAuthTokenMissing:
			s.Logger.WarnContext(r.Context(), "authentication failed",
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
			)
			writeAuthError(w, r, appErr.Code, appErr.Message)
			return
		}
	}

	// Store failures are not the caller's fault; surface them as such.
	s.Logger.ErrorContext(r.Context(), "authentication lookup failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, r, err)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="greenquote"`)
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
