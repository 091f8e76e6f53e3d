package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"landledger/internal/users/handler/mocks"
	"landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/testutil"
)

func newRouter(t *testing.T, svc Service, caller id.UserID) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithUserID(req, caller))
		})
	})
	New(svc, logger).Register(r)
	return r
}

func TestHandleSetVerification(t *testing.T) {
	adminID := id.UserID(uuid.New())
	userID := id.UserID(uuid.New())

	t.Run("passes the caller as admin", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			SetVerification(gomock.Any(), adminID, userID, models.VerificationVerified).
			Return(&models.User{ID: userID, VerificationStatus: models.VerificationVerified}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/users/"+userID.String()+"/verification",
			map[string]string{"status": "VERIFIED"})
		rr := testutil.DoRequest(newRouter(t, svc, adminID), req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[models.User](t, rr)
		assert.Equal(t, models.VerificationVerified, body.VerificationStatus)
	})

	t.Run("forbidden for non-admin", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			SetVerification(gomock.Any(), adminID, userID, models.VerificationRejected).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "admin role required"))

		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/users/"+userID.String()+"/verification",
			map[string]string{"status": "REJECTED"})
		rr := testutil.DoRequest(newRouter(t, svc, adminID), req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("malformed user id never reaches the service", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)

		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/users/not-a-uuid/verification",
			map[string]string{"status": "VERIFIED"})
		rr := testutil.DoRequest(newRouter(t, svc, adminID), req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandleMe(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	caller := id.UserID(uuid.New())
	svc.EXPECT().GetUser(gomock.Any(), caller).
		Return(&models.User{ID: caller, Email: "asha@example.com"}, nil)

	rr := testutil.DoRequest(newRouter(t, svc, caller), testutil.NewRequest(t, http.MethodGet, "/users/me"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "asha@example.com", testutil.UnmarshalResponse[models.User](t, rr).Email)
}
