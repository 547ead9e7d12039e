// Package httptransport assembles the HTTP surface: middleware chain, public
// reads, and the authenticated workflow routes.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vouch/internal/platform/metrics"
	"vouch/internal/platform/middleware"
	requesthandler "vouch/internal/request/handler"
	reviewhandler "vouch/internal/review/handler"
	verificationhandler "vouch/internal/verification/handler"
)

// Handlers bundles the module handlers the router mounts.
type Handlers struct {
	Request      *requesthandler.Handler
	Review       *reviewhandler.Handler
	Verification *verificationhandler.Handler
}

// NewRouter wires the full route tree.
//
// Reads used by feed rendering stay public; everything that mutates state
// goes through RequireAuth. Role checks live in the services, not here: the
// router only establishes who is calling.
func NewRouter(h Handlers, verifier *middleware.JWTVerifier, logger *slog.Logger, httpMetrics *metrics.HTTP) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	if httpMetrics != nil {
		r.Use(middleware.HTTPMetrics(httpMetrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(public chi.Router) {
		h.Verification.RegisterPublic(public)
	})

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(verifier, logger))
		h.Request.Register(protected)
		h.Review.Register(protected)
		h.Verification.RegisterProtected(protected)
	})

	return r
}
