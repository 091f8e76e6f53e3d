// Package handler exposes the buy request workflow to buyers and sellers and
// the transfer review queue to admins.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landledger/internal/trade/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

type Workflow interface {
	Initiate(ctx context.Context, landID id.LandID, buyerID id.UserID, price int64, message string) (*models.BuyRequest, error)
	SellerConfirm(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error)
	SellerDecline(ctx context.Context, actor id.UserID, requestID id.BuyRequestID, reason string) (*models.BuyRequest, error)
	BuyerCancel(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error)
	Get(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error)
	ListForUser(ctx context.Context, actor id.UserID) ([]*models.BuyRequest, error)
}

type Transfers interface {
	Approve(ctx context.Context, admin id.UserID, requestID id.BuyRequestID, comments string) (*models.BuyRequest, error)
	Reject(ctx context.Context, admin id.UserID, requestID id.BuyRequestID, reason string) (*models.BuyRequest, error)
	ListPending(ctx context.Context, admin id.UserID) ([]*models.BuyRequest, error)
}

type Handler struct {
	workflow  Workflow
	transfers Transfers
	logger    *slog.Logger
}

func New(workflow Workflow, transfers Transfers, logger *slog.Logger) *Handler {
	return &Handler{workflow: workflow, transfers: transfers, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/buy-requests", func(r chi.Router) {
		r.Post("/", h.handleInitiate)
		r.Get("/", h.handleListMine)
		r.Get("/{requestID}", h.handleGet)
		r.Post("/{requestID}/confirm", h.handleConfirm)
		r.Post("/{requestID}/decline", h.handleDecline)
		r.Post("/{requestID}/cancel", h.handleCancel)
	})
	r.Route("/admin/transactions", func(r chi.Router) {
		r.Get("/", h.handleListPending)
		r.Post("/{requestID}/approve", h.handleApprove)
		r.Post("/{requestID}/reject", h.handleReject)
	})
}

type initiateRequest struct {
	LandID  string `json:"land_id"`
	Price   int64  `json:"price"`
	Message string `json:"message"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req initiateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	landID, err := id.ParseLandID(req.LandID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	br, err := h.workflow.Initiate(ctx, landID, requestcontext.UserID(ctx), req.Price, req.Message)
	if err != nil {
		h.logger.WarnContext(ctx, "initiate buy request failed",
			"land_id", landID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, br)
}

type requestsResponse struct {
	Requests []*models.BuyRequest `json:"requests"`
	Count    int                  `json:"count"`
}

func writeRequests(w http.ResponseWriter, list []*models.BuyRequest) {
	if list == nil {
		list = []*models.BuyRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, requestsResponse{Requests: list, Count: len(list)})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.workflow.ListForUser(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRequests(w, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "", func(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error) {
		return h.workflow.Get(ctx, actor, requestID)
	})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "seller confirm failed", h.workflow.SellerConfirm)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	h.withRequest(w, r, "seller decline failed", func(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error) {
		return h.workflow.SellerDecline(ctx, actor, requestID, reason)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, "buyer cancel failed", h.workflow.BuyerCancel)
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.transfers.ListPending(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeRequests(w, list)
}

type approveRequest struct {
	Comments string `json:"comments"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	h.withRequest(w, r, "approve transfer failed", func(ctx context.Context, admin id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error) {
		return h.transfers.Approve(ctx, admin, requestID, req.Comments)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	reason, ok := decodeReason(w, r)
	if !ok {
		return
	}
	h.withRequest(w, r, "reject transfer failed", func(ctx context.Context, admin id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error) {
		return h.transfers.Reject(ctx, admin, requestID, reason)
	})
}

// decodeReason reads an optional {"reason": ...} body.
func decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reasonRequest
	if r.ContentLength == 0 {
		return "", true
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return req.Reason, true
}

// withRequest parses {requestID}, calls fn with the caller and writes the
// resulting buy request. Failures are logged when failure is set.
func (h *Handler) withRequest(w http.ResponseWriter, r *http.Request, failure string,
	fn func(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error)) {
	ctx := r.Context()
	requestID, err := id.ParseBuyRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	br, err := fn(ctx, requestcontext.UserID(ctx), requestID)
	if err != nil {
		if failure != "" {
			h.logger.WarnContext(ctx, failure,
				"buy_request_id", requestID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, br)
}
