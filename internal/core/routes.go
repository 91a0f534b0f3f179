package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"greenquote/internal/types"
)

// defaultRequestTimeout sits one second under the API Lambda timeout.
const defaultRequestTimeout = 29 * time.Second

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
}

// MountRoutes installs the global middleware chain and every registered
// route group. Call it once, after all registrars are appended.
//
// Middleware order:
//  1. Recoverer        outermost, catches every panic
//  2. ContextTimeout
//  3. RequestID
//  4. SecurityHeaders
//  5. RequestLogger
//  6. CORS
//  7. Compression
//
// Authenticated /v1 routes add AuthMiddleware; public /v1 routes add
// PublicRateLimit instead.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(CompressionMiddleware)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError("not_found_route", "no route for "+r.Method+" "+r.URL.Path, nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{Error: ErrorDetail{
			Code:      "method_not_allowed",
			Message:   r.Method + " is not allowed on " + r.URL.Path,
			RequestID: types.GetRequestID(r.Context()),
		}})
	})

	s.router.Get("/health", s.HandleHealth)
	for _, register := range s.RootRouteRegistrars {
		register(s.router)
	}

	s.router.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.PublicRateLimit)
			for _, register := range s.PublicRouteRegistrars {
				register(r)
			}
		})
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			for _, register := range s.V1RouteRegistrars {
				register(r)
			}
		})
	})
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}
