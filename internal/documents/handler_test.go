package documents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerFetch(t *testing.T) {
	store := NewMemory("http://localhost:8080")
	handle, err := store.Store(context.Background(), "certificate.pdf", "application/pdf", []byte("%PDF-1.3 body"))
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(store).Register(r)

	t.Run("serves stored content", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/"+handle.Hash, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Equal(t, "%PDF-1.3 body", rr.Body.String())
	})

	t.Run("unknown hash is 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/"+Hash([]byte("other")), nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed hash is 400", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/not-a-hash", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
