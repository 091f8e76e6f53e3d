package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"landledger/internal/auth/handler/mocks"
	"landledger/internal/auth/models"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/testutil"
)

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	return r
}

func TestHandleSend(t *testing.T) {
	t.Run("defaults purpose to login", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Send(gomock.Any(), "ana@example.com", models.PurposeLogin).Return(nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/otp/send", map[string]string{"email": "ana@example.com"})
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatus(t, rr, http.StatusAccepted)
		testutil.AssertJSONContains(t, rr, "status", "sent")
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)

		req := testutil.NewRequestWithBody(t, http.MethodPost, "/auth/otp/send", `{"email":"a@b.co","phone":"1"}`)
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

func TestHandleVerify(t *testing.T) {
	t.Run("returns the token", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Verify(gomock.Any(), "ana@example.com", "123456").
			Return(&models.LoginResult{AccessToken: "tok", TokenType: "Bearer", Role: "USER"}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/otp/verify",
			map[string]string{"email": "ana@example.com", "code": "123456"})
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[models.LoginResult](t, rr)
		assert.Equal(t, "tok", body.AccessToken)
	})

	t.Run("lockout maps to 429", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeTooManyAttempts, "too many attempts"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/otp/verify",
			map[string]string{"email": "ana@example.com", "code": "000000"})
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, string(dErrors.CodeTooManyAttempts))
	})

	t.Run("expired maps to 410", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeExpired, "code has expired"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/otp/verify",
			map[string]string{"email": "ana@example.com", "code": "000000"})
		rr := testutil.DoRequest(newRouter(svc), req)

		assert.Equal(t, http.StatusGone, rr.Code)
	})
}
