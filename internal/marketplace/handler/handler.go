package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	landhandler "landledger/internal/land/handler"
	"landledger/internal/land/models"
	"landledger/internal/marketplace/service"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, actor id.UserID, landID id.LandID, req service.ListingRequest) (*models.Land, error)
	Edit(ctx context.Context, actor id.UserID, landID id.LandID, update models.ListingUpdate) (*models.Land, error)
	Remove(ctx context.Context, actor id.UserID, landID id.LandID) (*models.Land, error)
	Browse(ctx context.Context, filter models.LandFilter) ([]*models.Land, error)
	MyListings(ctx context.Context, actor id.UserID) ([]*models.Land, error)
	ToggleWatch(ctx context.Context, actor id.UserID, landID id.LandID) (bool, error)
	Watched(ctx context.Context, actor id.UserID) ([]*models.Land, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/marketplace", func(r chi.Router) {
		r.Get("/", h.handleBrowse)
		r.Get("/mine", h.handleMine)
		r.Get("/watched", h.handleWatched)
		r.Post("/{landID}", h.handleList)
		r.Patch("/{landID}", h.handleEdit)
		r.Delete("/{landID}", h.handleRemove)
		r.Post("/{landID}/watch", h.handleToggleWatch)
	})
}

type listingsResponse struct {
	Listings []*models.Land `json:"listings"`
	Count    int            `json:"count"`
}

func writeListings(w http.ResponseWriter, lands []*models.Land) {
	if lands == nil {
		lands = []*models.Land{}
	}
	httputil.WriteJSON(w, http.StatusOK, listingsResponse{Listings: lands, Count: len(lands)})
}

func (h *Handler) handleBrowse(w http.ResponseWriter, r *http.Request) {
	filter, err := landhandler.ParseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	lands, err := h.service.Browse(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeListings(w, lands)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	lands, err := h.service.MyListings(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeListings(w, lands)
}

func (h *Handler) handleWatched(w http.ResponseWriter, r *http.Request) {
	lands, err := h.service.Watched(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeListings(w, lands)
}

type listRequest struct {
	AskingPrice int64    `json:"asking_price"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	landID, ok := h.landID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	land, err := h.service.List(ctx, requestcontext.UserID(ctx), landID, service.ListingRequest(req))
	if err != nil {
		h.fail(w, r, "list land failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, land)
}

type editRequest struct {
	AskingPrice *int64    `json:"asking_price"`
	Description *string   `json:"description"`
	Images      *[]string `json:"images"`
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	landID, ok := h.landID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	land, err := h.service.Edit(ctx, requestcontext.UserID(ctx), landID, models.ListingUpdate(req))
	if err != nil {
		h.fail(w, r, "edit listing failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	landID, ok := h.landID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	land, err := h.service.Remove(ctx, requestcontext.UserID(ctx), landID)
	if err != nil {
		h.fail(w, r, "remove listing failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

type watchResponse struct {
	LandID   string `json:"land_id"`
	Watching bool   `json:"watching"`
}

func (h *Handler) handleToggleWatch(w http.ResponseWriter, r *http.Request) {
	landID, ok := h.landID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	watching, err := h.service.ToggleWatch(ctx, requestcontext.UserID(ctx), landID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, watchResponse{LandID: landID.String(), Watching: watching})
}

func (h *Handler) landID(w http.ResponseWriter, r *http.Request) (id.LandID, bool) {
	landID, err := id.ParseLandID(chi.URLParam(r, "landID"))
	if err != nil {
		httputil.WriteError(w, err)
		return landID, false
	}
	return landID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"land_id", chi.URLParam(r, "landID"),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
