package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"landledger/internal/land/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, actor id.UserID, params models.RegistrationParams) (*models.Land, error)
	Get(ctx context.Context, landID id.LandID) (*models.Land, error)
	GetByAssetID(ctx context.Context, assetID string) (*models.Land, error)
	Search(ctx context.Context, filter models.LandFilter) ([]*models.Land, error)
	Claim(ctx context.Context, landID id.LandID, userID id.UserID) (*models.Land, error)
	Verify(ctx context.Context, admin id.UserID, landID id.LandID, decision models.VerificationStatus) (*models.Land, error)
	UpdateRecord(ctx context.Context, admin id.UserID, landID id.LandID, update models.RecordUpdate) (*models.Land, error)
	Digitalize(ctx context.Context, admin id.UserID, landID id.LandID) (*models.Land, error)
	MarkDisputed(ctx context.Context, admin id.UserID, landID id.LandID, reason string) (*models.Land, error)
	ResolveDispute(ctx context.Context, admin id.UserID, landID id.LandID, resolution string) (*models.Land, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry routes. Admin checks happen in the service.
func (h *Handler) Register(r chi.Router) {
	r.Route("/lands", func(r chi.Router) {
		r.Post("/", h.handleRegister)
		r.Get("/", h.handleSearch)
		r.Get("/asset/{assetID}", h.handleGetByAssetID)
		r.Get("/{landID}", h.handleGet)
		r.Patch("/{landID}", h.handleUpdateRecord)
		r.Post("/{landID}/claim", h.handleClaim)
		r.Post("/{landID}/verify", h.handleVerify)
		r.Post("/{landID}/digitalize", h.handleDigitalize)
		r.Post("/{landID}/dispute", h.handleDispute)
		r.Post("/{landID}/dispute/resolve", h.handleResolveDispute)
	})
}

type sourceDocumentRequest struct {
	Type               models.DocumentType `json:"type"`
	DocumentNumber     string              `json:"document_number"`
	Date               time.Time           `json:"date"`
	RegistrationOffice string              `json:"registration_office"`
	DocumentURL        string              `json:"document_url"`
	DocumentHash       string              `json:"document_hash"`
}

type registerRequest struct {
	Location          models.Location         `json:"location"`
	Boundaries        models.Boundaries       `json:"boundaries"`
	Area              models.Area             `json:"area"`
	LandType          models.LandType         `json:"land_type"`
	Classification    models.Classification   `json:"classification"`
	OriginalDocuments []sourceDocumentRequest `json:"original_documents"`
}

func (req registerRequest) params() models.RegistrationParams {
	docs := make([]models.SourceDocument, 0, len(req.OriginalDocuments))
	for _, d := range req.OriginalDocuments {
		docs = append(docs, models.SourceDocument(d))
	}
	return models.RegistrationParams{
		Location:          req.Location,
		Boundaries:        req.Boundaries,
		Area:              req.Area,
		LandType:          req.LandType,
		Classification:    req.Classification,
		OriginalDocuments: docs,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	land, err := h.service.Register(ctx, requestcontext.UserID(ctx), req.params())
	if err != nil {
		h.fail(w, r, "register land failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, land)
}

type searchResponse struct {
	Lands []*models.Land `json:"lands"`
	Count int            `json:"count"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	lands, err := h.service.Search(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "search lands failed", err)
		return
	}
	if lands == nil {
		lands = []*models.Land{}
	}
	httputil.WriteJSON(w, http.StatusOK, searchResponse{Lands: lands, Count: len(lands)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	landID, err := id.ParseLandID(chi.URLParam(r, "landID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	land, err := h.service.Get(r.Context(), landID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

func (h *Handler) handleGetByAssetID(w http.ResponseWriter, r *http.Request) {
	land, err := h.service.GetByAssetID(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	h.withLand(w, r, "claim failed", func(ctx context.Context, landID id.LandID) (*models.Land, error) {
		return h.service.Claim(ctx, landID, requestcontext.UserID(ctx))
	})
}

type verifyRequest struct {
	Decision models.VerificationStatus `json:"decision"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.withLand(w, r, "verify land failed", func(ctx context.Context, landID id.LandID) (*models.Land, error) {
		return h.service.Verify(ctx, requestcontext.UserID(ctx), landID, req.Decision)
	})
}

type updateRecordRequest struct {
	Location       *models.Location       `json:"location"`
	Boundaries     *models.Boundaries     `json:"boundaries"`
	Area           *models.Area           `json:"area"`
	LandType       *models.LandType       `json:"land_type"`
	Classification *models.Classification `json:"classification"`
}

func (h *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req updateRecordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.withLand(w, r, "update land record failed", func(ctx context.Context, landID id.LandID) (*models.Land, error) {
		return h.service.UpdateRecord(ctx, requestcontext.UserID(ctx), landID, models.RecordUpdate(req))
	})
}

func (h *Handler) handleDigitalize(w http.ResponseWriter, r *http.Request) {
	h.withLand(w, r, "digitalize failed", func(ctx context.Context, landID id.LandID) (*models.Land, error) {
		return h.service.Digitalize(ctx, requestcontext.UserID(ctx), landID)
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.withLand(w, r, "mark disputed failed", func(ctx context.Context, landID id.LandID) (*models.Land, error) {
		return h.service.MarkDisputed(ctx, requestcontext.UserID(ctx), landID, req.Reason)
	})
}

func (h *Handler) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	h.withLand(w, r, "resolve dispute failed", func(ctx context.Context, landID id.LandID) (*models.Land, error) {
		return h.service.ResolveDispute(ctx, requestcontext.UserID(ctx), landID, req.Reason)
	})
}

// withLand parses {landID}, runs fn and writes the resulting land.
func (h *Handler) withLand(w http.ResponseWriter, r *http.Request, failure string, fn func(context.Context, id.LandID) (*models.Land, error)) {
	landID, err := id.ParseLandID(chi.URLParam(r, "landID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	land, err := fn(r.Context(), landID)
	if err != nil {
		h.fail(w, r, failure, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
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

// PublicRoutes serves the certificate lookup encoded in certificate QR codes.
// It needs no authentication and discloses no owner details.
type PublicRoutes struct {
	h *Handler
}

func (h *Handler) Public() PublicRoutes {
	return PublicRoutes{h: h}
}

func (p PublicRoutes) Register(r chi.Router) {
	r.Get("/verify/{assetID}", p.h.handleVerifyCertificate)
}

type certificateStatus struct {
	AssetID            string                    `json:"asset_id"`
	Location           models.Location           `json:"location"`
	Area               models.Area               `json:"area"`
	LandType           models.LandType           `json:"land_type"`
	Status             models.Status             `json:"status"`
	VerificationStatus models.VerificationStatus `json:"verification_status"`
	IsDigitalized      bool                      `json:"is_digitalized"`
	CertificateHash    string                    `json:"certificate_hash,omitempty"`
	GeneratedDate      *time.Time                `json:"generated_date,omitempty"`
}

func (h *Handler) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	land, err := h.service.GetByAssetID(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, certificateStatus{
		AssetID:            land.AssetID,
		Location:           land.Location,
		Area:               land.Area,
		LandType:           land.LandType,
		Status:             land.Status,
		VerificationStatus: land.VerificationStatus,
		IsDigitalized:      land.DigitalDocument.IsDigitalized,
		CertificateHash:    land.DigitalDocument.CertificateHash,
		GeneratedDate:      land.DigitalDocument.GeneratedDate,
	})
}
