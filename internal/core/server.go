// Package core provides the API chassis for GreenQuote. It builds a chi
// router usable both as a standard HTTP server (local development) and
// behind an API Gateway Lambda proxy, and enforces the cross-cutting
// concerns (logging, auth, rate limiting, error envelopes) before requests
// reach the domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"greenquote/internal/config"
	"greenquote/internal/types"
)

// RouteRegistrar mounts a group of handler routes on a router.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies of the API. Handler packages register their
// routes through the registrar slices so core never imports them.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Authenticator  Authenticator
	RateLimitStore RateLimitStore
	HealthProbes   []HealthProbe

	// V1RouteRegistrars mount authenticated routes under /v1.
	V1RouteRegistrars []RouteRegistrar
	// PublicRouteRegistrars mount unauthenticated, rate-limited routes under /v1.
	PublicRouteRegistrars []RouteRegistrar
	// RootRouteRegistrars mount routes outside /v1 (provider callbacks).
	RootRouteRegistrars []RouteRegistrar

	// OnShutdown hooks run in reverse registration order.
	OnShutdown []func(ctx context.Context) error

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Callers register routes, then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger, ssrf types.SSRFValidator) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger, ssrf),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered shutdown hooks and joins their errors.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for i := len(s.OnShutdown) - 1; i >= 0; i-- {
		if err := s.OnShutdown[i](ctx); err != nil {
			s.Logger.Error("shutdown hook failed", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
