package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Gate,Directory,PendingRequestRejecter

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landledger/internal/documents"
	"landledger/internal/land/assetid"
	"landledger/internal/land/models"
	"landledger/internal/land/service/mocks"
	"landledger/internal/land/store"
	"landledger/internal/platform/metrics"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/audit/publishers/compliance"
	auditmemory "landledger/pkg/platform/audit/store/memory"
	"landledger/pkg/platform/tx"
	"landledger/pkg/requestcontext"
)

type RegistrySuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	gate      *mocks.MockGate
	directory *mocks.MockDirectory
	rejecter  *mocks.MockPendingRequestRejecter
	lands     *store.InMemory
	audits    *auditmemory.InMemoryStore
	docs      *documents.Memory
	metrics   *metrics.Metrics
	service   *Service
	ctx       context.Context

	admin id.UserID
	owner id.UserID
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gate = mocks.NewMockGate(s.ctrl)
	s.directory = mocks.NewMockDirectory(s.ctrl)
	s.rejecter = mocks.NewMockPendingRequestRejecter(s.ctrl)
	s.lands = store.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.docs = documents.NewMemory("http://docs.test")
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.admin = id.NewUserID()
	s.owner = id.NewUserID()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC))

	s.gate.EXPECT().RequireAdmin(gomock.Any(), s.admin).
		Return(&usermodels.User{ID: s.admin, Role: usermodels.RoleAdmin}, nil).AnyTimes()
	s.gate.EXPECT().RequireAdmin(gomock.Any(), gomock.Not(s.admin)).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "admin role required")).AnyTimes()

	s.service = New(s.lands, tx.NewShardedRunner(time.Second), s.gate, s.directory, assetid.New(nil),
		WithAuditPublisher(compliance.New(s.audits)),
		WithMetrics(s.metrics),
		WithDocumentStore(s.docs),
		WithPendingRequestRejecter(s.rejecter),
		WithPublicBaseURL("https://landledger.test"),
	)
}

func (s *RegistrySuite) params() models.RegistrationParams {
	return models.RegistrationParams{
		Location: models.Location{
			State: "Karnataka", District: "Mandya", Taluka: "Maddur", Village: "Koppa",
			SurveyNumber: "118", SubDivision: "2A", Pincode: "571422",
		},
		Area:     models.Area{Acres: 3, Guntas: 10},
		LandType: models.LandTypeAgricultural,
		OriginalDocuments: []models.SourceDocument{
			{Type: models.DocumentPatta, DocumentNumber: "PT-9921"},
		},
	}
}

func (s *RegistrySuite) registered() *models.Land {
	land, err := s.service.Register(s.ctx, s.admin, s.params())
	s.Require().NoError(err)
	return land
}

func (s *RegistrySuite) claimed() *models.Land {
	land := s.registered()
	s.gate.EXPECT().RequireVerified(gomock.Any(), s.owner).
		Return(&usermodels.User{ID: s.owner, FullName: "Ravi Kumar", VerificationStatus: usermodels.VerificationVerified}, nil)
	claimed, err := s.service.Claim(s.ctx, land.ID, s.owner)
	s.Require().NoError(err)
	return claimed
}

func (s *RegistrySuite) TestRegister() {
	s.Run("creates an unclaimed pending record", func() {
		land := s.registered()

		s.Regexp(`^KAMAN\d{9}$`, land.AssetID)
		s.Equal(models.StatusAvailable, land.Status)
		s.Equal(models.VerificationPending, land.VerificationStatus)
		s.True(land.CurrentOwner.IsNil())
		s.Empty(land.OwnershipHistory)
		s.Equal(s.admin, land.AddedBy)
		s.Len(s.audits.ListByAction(audit.EventLandRegistered), 1)
	})

	s.Run("non-admin is forbidden", func() {
		_, err := s.service.Register(s.ctx, s.owner, s.params())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing location field is a validation error", func() {
		p := s.params()
		p.Location.Pincode = "  "
		_, err := s.service.Register(s.ctx, s.admin, p)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("gives up after repeated asset id collisions", func() {
		fixed := New(s.lands, tx.NewShardedRunner(time.Second), s.gate, s.directory,
			assetid.New(func(int) int { return 7 }))
		_, err := fixed.Register(s.ctx, s.admin, s.params())
		s.Require().NoError(err)

		_, err = fixed.Register(s.ctx, s.admin, s.params())
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentifier))
	})
}

func (s *RegistrySuite) TestClaim() {
	s.Run("verified user becomes first owner", func() {
		land := s.claimed()

		s.Equal(s.owner, land.CurrentOwner)
		s.Require().Len(land.OwnershipHistory, 1)
		s.Equal("Ravi Kumar", land.OwnershipHistory[0].OwnerName)
		s.True(land.OwnershipHistory[0].IsOpen())
		s.Equal(models.StatusAvailable, land.Status)
		s.Len(s.audits.ListBySubject(land.ID.String()), 2)
	})

	s.Run("second claim is rejected", func() {
		land := s.claimed()
		other := id.NewUserID()
		s.gate.EXPECT().RequireVerified(gomock.Any(), other).
			Return(&usermodels.User{ID: other, VerificationStatus: usermodels.VerificationVerified}, nil)

		_, err := s.service.Claim(s.ctx, land.ID, other)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyOwned))

		stored, err := s.service.Get(s.ctx, land.ID)
		s.Require().NoError(err)
		s.Equal(s.owner, stored.CurrentOwner)
	})

	s.Run("unverified user is rejected", func() {
		land := s.registered()
		s.gate.EXPECT().RequireVerified(gomock.Any(), s.owner).
			Return(nil, dErrors.New(dErrors.CodeNotVerified, "user is not verified"))

		_, err := s.service.Claim(s.ctx, land.ID, s.owner)
		s.True(dErrors.HasCode(err, dErrors.CodeNotVerified))
	})

	s.Run("unknown land", func() {
		s.gate.EXPECT().RequireVerified(gomock.Any(), s.owner).
			Return(&usermodels.User{ID: s.owner, VerificationStatus: usermodels.VerificationVerified}, nil)
		_, err := s.service.Claim(s.ctx, id.NewLandID(), s.owner)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrySuite) TestVerifyAndUpdateRecord() {
	s.Run("rejected record returns to pending after correction", func() {
		land := s.registered()

		rejected, err := s.service.Verify(s.ctx, s.admin, land.ID, models.VerificationRejected)
		s.Require().NoError(err)
		s.Equal(models.VerificationRejected, rejected.VerificationStatus)

		area := models.Area{Acres: 3, Guntas: 12}
		updated, err := s.service.UpdateRecord(s.ctx, s.admin, land.ID, models.RecordUpdate{Area: &area})
		s.Require().NoError(err)
		s.Equal(models.VerificationPending, updated.VerificationStatus)
		s.Equal(area, updated.Area)
		s.Equal(land.AssetID, updated.AssetID)
	})

	s.Run("verified record is immutable", func() {
		land := s.registered()
		_, err := s.service.Verify(s.ctx, s.admin, land.ID, models.VerificationVerified)
		s.Require().NoError(err)

		area := models.Area{Acres: 1}
		_, err = s.service.UpdateRecord(s.ctx, s.admin, land.ID, models.RecordUpdate{Area: &area})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		_, err = s.service.Verify(s.ctx, s.admin, land.ID, models.VerificationRejected)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("decision must be terminal", func() {
		land := s.registered()
		_, err := s.service.Verify(s.ctx, s.admin, land.ID, models.VerificationPending)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestDigitalize() {
	land := s.claimed()
	s.directory.EXPECT().GetUser(gomock.Any(), s.owner).
		Return(&usermodels.User{ID: s.owner, FullName: "Ravi Kumar", Email: "ravi@example.com"}, nil)

	digital, err := s.service.Digitalize(s.ctx, s.admin, land.ID)
	s.Require().NoError(err)
	s.True(digital.DigitalDocument.IsDigitalized)
	s.Len(digital.DigitalDocument.CertificateHash, 64)
	s.Contains(digital.DigitalDocument.QRCode, land.AssetID)

	obj, err := s.docs.Fetch(s.ctx, digital.DigitalDocument.CertificateHash)
	s.Require().NoError(err)
	s.NotEmpty(obj)

	again, err := s.service.Digitalize(s.ctx, s.admin, land.ID)
	s.Require().NoError(err)
	s.Equal(digital.DigitalDocument, again.DigitalDocument)
	s.Len(s.audits.ListByAction(audit.EventLandDigitalized), 1)
}

func (s *RegistrySuite) TestDisputeLifecycle() {
	s.Run("dispute and resolve clears listing and pending requests", func() {
		land := s.claimed()
		stored, err := s.lands.FindByID(s.ctx, land.ID)
		s.Require().NoError(err)
		s.Require().NoError(stored.ApplyListing(900000, "", nil, time.Now()))
		s.Require().NoError(s.lands.Update(s.ctx, stored))

		disputed, err := s.service.MarkDisputed(s.ctx, s.admin, land.ID, "boundary claim by neighbour")
		s.Require().NoError(err)
		s.Equal(models.StatusDisputed, disputed.Status)

		_, err = s.service.MarkDisputed(s.ctx, s.admin, land.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		s.rejecter.EXPECT().
			RejectActiveForLand(gomock.Any(), land.ID, s.admin, "land dispute: settled in court").
			Return(true, nil)
		resolved, err := s.service.ResolveDispute(s.ctx, s.admin, land.ID, "settled in court")
		s.Require().NoError(err)
		s.Equal(models.StatusAvailable, resolved.Status)
		s.Nil(resolved.MarketInfo)
		s.Equal(s.owner, resolved.CurrentOwner)

		s.Equal(1.0, testutil.ToFloat64(s.metrics.LandTransitions.WithLabelValues("FOR_SALE", "DISPUTED")))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LandTransitions.WithLabelValues("DISPUTED", "AVAILABLE")))
	})

	s.Run("reason is required", func() {
		land := s.registered()
		_, err := s.service.MarkDisputed(s.ctx, s.admin, land.ID, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("resolving an undisputed land fails", func() {
		land := s.registered()
		_, err := s.service.ResolveDispute(s.ctx, s.admin, land.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("failed rejection rolls the resolution back", func() {
		land := s.registered()
		_, err := s.service.MarkDisputed(s.ctx, s.admin, land.ID, "forged patta")
		s.Require().NoError(err)

		s.rejecter.EXPECT().RejectActiveForLand(gomock.Any(), land.ID, s.admin, gomock.Any()).
			Return(false, dErrors.New(dErrors.CodeConflict, "buy request was modified concurrently"))
		_, err = s.service.ResolveDispute(s.ctx, s.admin, land.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		stored, err := s.service.Get(s.ctx, land.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDisputed, stored.Status)
	})
}

func (s *RegistrySuite) TestSearch() {
	first := s.registered()
	p := s.params()
	p.Location.District = "Hassan"
	_, err := s.service.Register(s.ctx, s.admin, p)
	s.Require().NoError(err)

	found, err := s.service.Search(s.ctx, models.LandFilter{District: "mandya"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(first.ID, found[0].ID)

	byAsset, err := s.service.GetByAssetID(s.ctx, first.AssetID)
	s.Require().NoError(err)
	s.Equal(first.ID, byAsset.ID)

	_, err = s.service.Search(s.ctx, models.LandFilter{Status: "LOST"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
