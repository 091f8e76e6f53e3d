package documents

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/httputil"
	"landledger/pkg/platform/sentinel"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type Fetcher interface {
	Fetch(ctx context.Context, hash string) (*Object, error)
}

// Handler serves stored documents by hash. Certificates are public records,
// so the route sits outside authentication.
type Handler struct {
	store Fetcher
}

func NewHandler(store Fetcher) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/documents/{hash}", h.handleFetch)
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if !hashPattern.MatchString(hash) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid document hash"))
		return
	}
	obj, err := h.store.Fetch(r.Context(), hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "document not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch document"))
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Content)))
	w.Header().Set("ETag", `"`+hash+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Content)
}
