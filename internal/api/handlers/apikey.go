package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"greenquote/internal/auth"
	"greenquote/internal/core"
	"greenquote/internal/types"
)

// APIKeyStore creates and revokes API keys.
type APIKeyStore interface {
	Create(ctx context.Context, key *types.APIKey) error
	Revoke(ctx context.Context, id, accountID string) error
}

// CreateAPIKeyRequest is the body of POST /v1/api-keys.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// APIKeySecretResponse is returned once, when a key is created. The
// plaintext key cannot be retrieved again.
type APIKeySecretResponse struct {
	*types.APIKey
	Key string `json:"key"`
}

// APIKeyHandler issues and revokes additional API keys for an account.
type APIKeyHandler struct {
	keys      APIKeyStore
	hasher    auth.Hasher
	clock     types.Clock
	validator *core.Validator
	logger    *slog.Logger
}

func NewAPIKeyHandler(keys APIKeyStore, hasher auth.Hasher, clock types.Clock, v *core.Validator, l *slog.Logger) *APIKeyHandler {
	if l == nil {
		l = slog.Default()
	}
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &APIKeyHandler{keys: keys, hasher: hasher, clock: clock, validator: v, logger: l}
}

func (h *APIKeyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api-keys", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Delete("/{keyID}", h.Revoke)
	})
}

// Create handles POST /v1/api-keys.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CreateAPIKeyRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	plaintext, key, err := auth.NewKey(h.hasher, accountID, req.Name)
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate api key", err))
		return
	}
	key.CreatedAt = h.clock.Now()

	if err := h.keys.Create(r.Context(), key); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "api key created",
		"account_id", accountID,
		"key_id", key.ID,
		"created_by", actorAttribution(r.Context()),
	)
	core.Respond(w, r, http.StatusCreated, APIKeySecretResponse{APIKey: key, Key: plaintext}, nil)
}

// Revoke handles DELETE /v1/api-keys/{keyID}. Revocation takes effect on
// the next request that presents the key.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	accountID, err := requireAccountID(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	keyID := chi.URLParam(r, "keyID")

	if actor, ok := types.GetActor(r.Context()); ok && actor.ID == keyID {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidArgument,
			"a key cannot revoke itself", nil))
		return
	}

	if err := h.keys.Revoke(r.Context(), keyID, accountID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "api key revoked",
		"account_id", accountID,
		"key_id", keyID,
	)
	w.WriteHeader(http.StatusNoContent)
}

func actorAttribution(ctx context.Context) string {
	if actor, ok := types.GetActor(ctx); ok {
		return actor.Attribution()
	}
	return ""
}
