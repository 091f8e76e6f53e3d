package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landledger/internal/users/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

type Service interface {
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
	SetVerification(ctx context.Context, adminID, userID id.UserID, status models.VerificationStatus) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the user routes. The caller applies authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/me", h.handleMe)
	r.Put("/admin/users/{userID}/verification", h.handleSetVerification)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

type setVerificationRequest struct {
	Status models.VerificationStatus `json:"status"`
}

func (h *Handler) handleSetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req setVerificationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.service.SetVerification(ctx, requestcontext.UserID(ctx), userID, req.Status)
	if err != nil {
		h.logger.WarnContext(ctx, "set verification failed",
			"user_id", userID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}
