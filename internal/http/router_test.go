package httpapi

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landledger/internal/platform/metrics"
	"landledger/internal/platform/middleware"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
	"landledger/pkg/testutil"
)

type stubValidator struct {
	userID id.UserID
}

func (v stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &middleware.JWTClaims{UserID: v.userID.String(), Role: "USER"}, nil
}

type routesFunc func(r chi.Router)

func (f routesFunc) Register(r chi.Router) { f(r) }

func newTestRouter(t *testing.T, userID id.UserID, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Config{
		Logger:       slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Metrics:      metrics.New(reg),
		Gatherer:     reg,
		Validator:    stubValidator{userID: userID},
		HealthChecks: checks,
		Public: []Routes{routesFunc(func(r chi.Router) {
			r.Post("/auth/otp/send", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			})
		})},
		Protected: []Routes{routesFunc(func(r chi.Router) {
			r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteJSON(w, http.StatusOK, map[string]string{
					"user_id": requestcontext.UserID(r.Context()).String(),
				})
			})
		})},
	})
}

func TestRouterAuthentication(t *testing.T) {
	userID := id.NewUserID()
	router := newTestRouter(t, userID, nil)

	t.Run("public routes need no token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/auth/otp/send"))
		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("protected routes reject missing token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/whoami"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("bearer token sets the caller", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer good")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		testutil.AssertJSONContains(t, rr, "user_id", userID.String())
	})

	t.Run("non json bodies are refused", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/auth/otp/send", "email=a")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	})
}

func TestRouterOperationalEndpoints(t *testing.T) {
	t.Run("health reports each check", func(t *testing.T) {
		router := newTestRouter(t, id.NewUserID(), map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "ok", body.Checks["postgres"])
	})

	t.Run("metrics exposes request latency", func(t *testing.T) {
		router := newTestRouter(t, id.NewUserID(), nil)
		testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "landledger_http_request_duration_seconds")
	})
}

func TestThrottledRoutes(t *testing.T) {
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	r := NewRouter(Config{
		Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Public: []Routes{
			Throttled(routesFunc(func(r chi.Router) {
				r.Post("/auth/otp/send", func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusAccepted)
				})
			}), blocked),
			routesFunc(func(r chi.Router) {
				r.Get("/verify/{assetID}", func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusOK)
				})
			}),
		},
	})

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodPost, "/auth/otp/send"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/verify/KAMAN123456789"))
	assert.Equal(t, http.StatusOK, rr.Code, "middleware stays scoped to its routes")
}
