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

	"landledger/internal/land/models"
	"landledger/internal/marketplace/handler/mocks"
	"landledger/internal/marketplace/service"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/testutil"
)

func newRouter(t *testing.T, svc Service, caller id.UserID) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithUserID(req, caller))
		})
	})
	New(svc, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	return r
}

func TestHandleList(t *testing.T) {
	owner := id.NewUserID()
	landID := id.NewLandID()

	t.Run("creates a listing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			List(gomock.Any(), owner, landID, service.ListingRequest{AskingPrice: 750000, Description: "corner plot", Images: []string{"a.jpg"}}).
			Return(&models.Land{ID: landID, Status: models.StatusForSale}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/marketplace/"+landID.String(), map[string]any{
			"asking_price": 750000, "description": "corner plot", "images": []string{"a.jpg"},
		})
		rr := testutil.DoRequest(newRouter(t, svc, owner), req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "status", "FOR_SALE")
	})

	t.Run("non owner", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().List(gomock.Any(), owner, landID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotOwner, "caller does not own this land"))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/marketplace/"+landID.String(), map[string]any{"asking_price": 1})
		rr := testutil.DoRequest(newRouter(t, svc, owner), req)

		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeNotOwner))
	})
}

func TestHandleEditSendsOnlyPresentFields(t *testing.T) {
	owner := id.NewUserID()
	landID := id.NewLandID()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().
		Edit(gomock.Any(), owner, landID, gomock.Any()).
		DoAndReturn(func(_ any, _ id.UserID, _ id.LandID, u models.ListingUpdate) (*models.Land, error) {
			require.NotNil(t, u.AskingPrice)
			assert.Equal(t, int64(690000), *u.AskingPrice)
			assert.Nil(t, u.Description)
			assert.Nil(t, u.Images)
			return &models.Land{ID: landID}, nil
		})

	req := testutil.NewJSONRequest(t, http.MethodPatch, "/marketplace/"+landID.String(), map[string]any{"asking_price": 690000})
	rr := testutil.DoRequest(newRouter(t, svc, owner), req)

	testutil.AssertStatusOK(t, rr)
}

func TestHandleRemoveWithActiveRequest(t *testing.T) {
	owner := id.NewUserID()
	landID := id.NewLandID()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	svc.EXPECT().Remove(gomock.Any(), owner, landID).
		Return(nil, dErrors.New(dErrors.CodeTransactionInProgress, "land has an active buy request"))

	rr := testutil.DoRequest(newRouter(t, svc, owner), testutil.NewRequest(t, http.MethodDelete, "/marketplace/"+landID.String()))

	testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeTransactionInProgress))
}

func TestBrowseAndWatch(t *testing.T) {
	user := id.NewUserID()
	landID := id.NewLandID()

	t.Run("browse empty result is an empty list", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().Browse(gomock.Any(), models.LandFilter{Village: "Koppa", MaxPrice: 900000}).Return(nil, nil)

		rr := testutil.DoRequest(newRouter(t, svc, user),
			testutil.NewRequest(t, http.MethodGet, "/marketplace?village=Koppa&max_price=900000"))

		testutil.AssertStatusOK(t, rr)
		assert.JSONEq(t, `{"listings":[],"count":0}`, rr.Body.String())
	})

	t.Run("static routes win over land ids", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().MyListings(gomock.Any(), user).Return([]*models.Land{{ID: landID}}, nil)
		svc.EXPECT().Watched(gomock.Any(), user).Return(nil, nil)

		router := newRouter(t, svc, user)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/marketplace/mine"))
		testutil.AssertJSONContains(t, rr, "count", float64(1))
		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/marketplace/watched"))
		testutil.AssertJSONContains(t, rr, "count", float64(0))
	})

	t.Run("toggle watch", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().ToggleWatch(gomock.Any(), user, landID).Return(true, nil)

		rr := testutil.DoRequest(newRouter(t, svc, user),
			testutil.NewRequest(t, http.MethodPost, "/marketplace/"+landID.String()+"/watch"))

		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "watching", true)
	})
}
