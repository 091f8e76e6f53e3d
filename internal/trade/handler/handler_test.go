package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Workflow,Transfers

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landledger/internal/trade/handler/mocks"
	"landledger/internal/trade/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	workflow  *mocks.MockWorkflow
	transfers *mocks.MockTransfers
	caller    id.UserID
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.workflow = mocks.NewMockWorkflow(s.ctrl)
	s.transfers = mocks.NewMockTransfers(s.ctrl)
	s.caller = id.NewUserID()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithUserID(req, s.caller))
		})
	})
	New(s.workflow, s.transfers, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))).Register(r)
	s.router = r
}

func (s *HandlerSuite) TestInitiate() {
	landID := id.NewLandID()
	s.workflow.EXPECT().
		Initiate(gomock.Any(), landID, s.caller, int64(480000), "interested").
		Return(&models.BuyRequest{ID: id.NewBuyRequestID(), Status: models.StatusPendingSellerConfirmation}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/buy-requests", map[string]any{
		"land_id": landID.String(), "price": 480000, "message": "interested",
	}))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "status", string(models.StatusPendingSellerConfirmation))
}

func (s *HandlerSuite) TestInitiateConflict() {
	landID := id.NewLandID()
	s.workflow.EXPECT().Initiate(gomock.Any(), landID, s.caller, gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeTransactionInProgress, "land already has an active buy request"))

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/buy-requests", map[string]any{
		"land_id": landID.String(), "price": 1,
	}))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeTransactionInProgress))
}

func (s *HandlerSuite) TestInitiateRequiresLandID() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/buy-requests", map[string]any{"price": 1}))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}

func (s *HandlerSuite) TestSellerActions() {
	requestID := id.NewBuyRequestID()
	path := "/buy-requests/" + requestID.String()

	s.workflow.EXPECT().SellerConfirm(gomock.Any(), s.caller, requestID).
		Return(&models.BuyRequest{ID: requestID, Status: models.StatusPendingAdminApproval}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, path+"/confirm"))
	testutil.AssertStatusOK(s.T(), rr)

	s.workflow.EXPECT().SellerDecline(gomock.Any(), s.caller, requestID, "price too low").
		Return(&models.BuyRequest{ID: requestID, Status: models.StatusRejected}, nil)
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/decline", map[string]string{"reason": "price too low"}))
	testutil.AssertStatusOK(s.T(), rr)

	s.workflow.EXPECT().BuyerCancel(gomock.Any(), s.caller, requestID).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "only the buyer may cancel"))
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, path+"/cancel"))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
}

func (s *HandlerSuite) TestIntegrityErrorHidesDescription() {
	requestID := id.NewBuyRequestID()
	s.workflow.EXPECT().SellerConfirm(gomock.Any(), s.caller, requestID).
		Return(nil, dErrors.New(dErrors.CodeIntegrityViolation, "buy request seller is not the current owner"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/buy-requests/"+requestID.String()+"/confirm"))

	s.Equal(http.StatusInternalServerError, rr.Code)
	s.NotContains(rr.Body.String(), "current owner")
}

func (s *HandlerSuite) TestListMineAndGet() {
	requestID := id.NewBuyRequestID()
	s.workflow.EXPECT().ListForUser(gomock.Any(), s.caller).Return(nil, nil)
	s.workflow.EXPECT().Get(gomock.Any(), s.caller, requestID).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "buy request not found"))

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/buy-requests"))
	s.JSONEq(`{"requests":[],"count":0}`, rr.Body.String())

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/buy-requests/"+requestID.String()))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *HandlerSuite) TestAdminTransactions() {
	requestID := id.NewBuyRequestID()
	path := "/admin/transactions/" + requestID.String()

	s.transfers.EXPECT().ListPending(gomock.Any(), s.caller).
		Return([]*models.BuyRequest{{ID: requestID, Status: models.StatusPendingAdminApproval}}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/transactions"))
	testutil.AssertJSONContains(s.T(), rr, "count", float64(1))

	s.transfers.EXPECT().Approve(gomock.Any(), s.caller, requestID, "").
		Return(&models.BuyRequest{ID: requestID, Status: models.StatusApproved}, nil)
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, path+"/approve"))
	testutil.AssertJSONContains(s.T(), rr, "status", string(models.StatusApproved))

	s.transfers.EXPECT().Reject(gomock.Any(), s.caller, requestID, "").
		Return(nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required"))
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, path+"/reject"))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
}
