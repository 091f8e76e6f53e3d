// Package httpapi assembles the chi router: shared middleware, the public
// login routes, the authenticated API, and the operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"landledger/internal/platform/metrics"
	"landledger/internal/platform/middleware"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/platform/middleware/metadata"
)

// Routes is implemented by every module handler.
type Routes interface {
	Register(r chi.Router)
}

// Throttled mounts routes behind extra middleware, typically a rate limit.
func Throttled(routes Routes, mw ...func(http.Handler) http.Handler) Routes {
	return throttled{routes: routes, mw: mw}
}

type throttled struct {
	routes Routes
	mw     []func(http.Handler) http.Handler
}

func (t throttled) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(t.mw...)
		t.routes.Register(r)
	})
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      middleware.JWTValidator
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	// Traced wraps the router in otelhttp so spans carry the request.
	Traced         bool
	Public         []Routes
	Protected      []Routes
}

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/health", healthHandler(cfg.HealthChecks))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		r.Use(middleware.ContentTypeJSON)
		for _, routes := range cfg.Public {
			routes.Register(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
			for _, routes := range cfg.Protected {
				routes.Register(r)
			}
		})
	})

	if cfg.Traced {
		return otelhttp.NewHandler(r, "landledger",
			otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
				return req.Method + " " + req.URL.Path
			}),
		)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
