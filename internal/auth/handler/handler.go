package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landledger/internal/auth/models"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

type Service interface {
	Send(ctx context.Context, address string, purpose models.Purpose) error
	Verify(ctx context.Context, address, code string) (*models.LoginResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public login routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/otp/send", h.handleSend)
	r.Post("/auth/otp/verify", h.handleVerify)
}

type sendRequest struct {
	Email   string         `json:"email"`
	Purpose models.Purpose `json:"purpose"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req sendRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Purpose == "" {
		req.Purpose = models.PurposeLogin
	}

	if err := h.service.Send(ctx, req.Email, req.Purpose); err != nil {
		h.logger.WarnContext(ctx, "otp send failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Verify(ctx, req.Email, req.Code)
	if err != nil {
		h.logger.WarnContext(ctx, "otp verify failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
