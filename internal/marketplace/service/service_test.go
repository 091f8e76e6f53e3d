package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landledger/internal/land/models"
	landstore "landledger/internal/land/store"
	"landledger/internal/marketplace/service/mocks"
	"landledger/internal/marketplace/watchlist"
	trademodels "landledger/internal/trade/models"
	tradestore "landledger/internal/trade/store"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/audit/publishers/compliance"
	auditmemory "landledger/pkg/platform/audit/store/memory"
	"landledger/pkg/platform/tx"
	"landledger/pkg/requestcontext"
)

type MarketplaceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	gate     *mocks.MockGate
	lands    *landstore.InMemory
	requests *tradestore.InMemory
	audits   *auditmemory.InMemoryStore
	service  *Service
	ctx      context.Context
	owner    id.UserID
}

func TestMarketplaceSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceSuite))
}

func (s *MarketplaceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gate = mocks.NewMockGate(s.ctrl)
	s.lands = landstore.NewInMemory()
	s.requests = tradestore.NewInMemory()
	s.audits = auditmemory.NewInMemoryStore()
	s.service = s.newService()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))
	s.owner = id.NewUserID()
	s.gate.EXPECT().RequireVerified(gomock.Any(), s.owner).
		Return(&usermodels.User{ID: s.owner, VerificationStatus: usermodels.VerificationVerified}, nil).AnyTimes()
}

func (s *MarketplaceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *MarketplaceSuite) newService(opts ...Option) *Service {
	opts = append([]Option{WithAuditPublisher(compliance.New(s.audits))}, opts...)
	return New(s.lands, s.requests, tx.NewShardedRunner(time.Second), s.gate, watchlist.NewInMemory(), opts...)
}

func (s *MarketplaceSuite) ownedLand(village string) *models.Land {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	land, err := models.NewLand(id.NewLandID(), "KABLR"+village, models.RegistrationParams{
		Location: models.Location{
			State: "Karnataka", District: "Bengaluru", Taluka: "Anekal", Village: village,
			SurveyNumber: "3", SubDivision: "A", Pincode: "562106",
		},
		Area:     models.Area{Sqft: 1200},
		LandType: models.LandTypeResidential,
	}, id.NewUserID(), now)
	s.Require().NoError(err)
	land.ApplyClaim(s.owner, "Owner", "claim", now)
	s.Require().NoError(s.lands.Create(context.Background(), land))
	return land
}

func (s *MarketplaceSuite) listed(village string) *models.Land {
	land := s.ownedLand(village)
	listed, err := s.service.List(s.ctx, s.owner, land.ID, ListingRequest{AskingPrice: 600000, Description: "plot"})
	s.Require().NoError(err)
	return listed
}

func (s *MarketplaceSuite) TestList() {
	s.Run("lists an available parcel", func() {
		land := s.ownedLand("Chandapura")
		listed, err := s.service.List(s.ctx, s.owner, land.ID, ListingRequest{
			AskingPrice: 600000,
			Description: "  gated layout  ",
			Images:      []string{" a.jpg", "a.jpg", "", "b.jpg"},
		})
		s.Require().NoError(err)
		s.Equal(models.StatusForSale, listed.Status)
		s.Require().NotNil(listed.MarketInfo)
		s.Equal("gated layout", listed.MarketInfo.Description)
		s.Equal([]string{"a.jpg", "b.jpg"}, listed.MarketInfo.Images)
		s.Equal(float64(500), listed.MarketInfo.PricePerSqft)
		s.Len(s.audits.ListByAction(audit.EventListingCreated), 1)
	})

	s.Run("non-positive price is a validation error", func() {
		land := s.ownedLand("Hebbagodi")
		_, err := s.service.List(s.ctx, s.owner, land.ID, ListingRequest{AskingPrice: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("non-owner is rejected", func() {
		land := s.ownedLand("Bommasandra")
		other := id.NewUserID()
		s.gate.EXPECT().RequireVerified(gomock.Any(), other).
			Return(&usermodels.User{ID: other, VerificationStatus: usermodels.VerificationVerified}, nil)
		_, err := s.service.List(s.ctx, other, land.ID, ListingRequest{AskingPrice: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})

	s.Run("unverified owner is rejected", func() {
		land := s.ownedLand("Attibele")
		pending := id.NewUserID()
		s.gate.EXPECT().RequireVerified(gomock.Any(), pending).
			Return(nil, dErrors.New(dErrors.CodeNotVerified, "user is not verified"))
		_, err := s.service.List(s.ctx, pending, land.ID, ListingRequest{AskingPrice: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeNotVerified))
	})

	s.Run("listing twice is invalid state", func() {
		land := s.listed("Sarjapura")
		_, err := s.service.List(s.ctx, s.owner, land.ID, ListingRequest{AskingPrice: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("verified record can be required", func() {
		strict := s.newService(WithRequireVerifiedLand(true))
		land := s.ownedLand("Dommasandra")
		_, err := strict.List(s.ctx, s.owner, land.ID, ListingRequest{AskingPrice: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *MarketplaceSuite) TestEdit() {
	s.Run("changes only market info", func() {
		land := s.listed("Jigani")
		price := int64(720000)
		images := []string{"c.jpg", "c.jpg"}
		edited, err := s.service.Edit(s.ctx, s.owner, land.ID, models.ListingUpdate{AskingPrice: &price, Images: &images})
		s.Require().NoError(err)
		s.Equal(price, edited.MarketInfo.AskingPrice)
		s.Equal(float64(600), edited.MarketInfo.PricePerSqft)
		s.Equal([]string{"c.jpg"}, edited.MarketInfo.Images)
		s.Equal("plot", edited.MarketInfo.Description)
		s.Equal(land.Location, edited.Location)
	})

	s.Run("unlisted parcel is invalid state", func() {
		land := s.ownedLand("Kammasandra")
		desc := "x"
		_, err := s.service.Edit(s.ctx, s.owner, land.ID, models.ListingUpdate{Description: &desc})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("zero price is a validation error", func() {
		land := s.listed("Huskur")
		zero := int64(0)
		_, err := s.service.Edit(s.ctx, s.owner, land.ID, models.ListingUpdate{AskingPrice: &zero})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *MarketplaceSuite) TestRemove() {
	s.Run("returns the parcel to available", func() {
		land := s.listed("Anekal")
		removed, err := s.service.Remove(s.ctx, s.owner, land.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAvailable, removed.Status)
		s.Nil(removed.MarketInfo)
	})

	s.Run("pending admin approval is transaction in progress", func() {
		land := s.listed("Marsur")
		r, err := trademodels.NewBuyRequest(id.NewBuyRequestID(), land.ID, s.owner, id.NewUserID(), 590000, "", time.Now())
		s.Require().NoError(err)
		r.ApplyConfirm(time.Now())
		s.Require().NoError(s.requests.Create(context.Background(), r))
		current, err := s.lands.FindByID(s.ctx, land.ID)
		s.Require().NoError(err)
		s.Require().NoError(current.ApplyLock(time.Now()))
		s.Require().NoError(s.lands.Update(context.Background(), current))

		_, err = s.service.Remove(s.ctx, s.owner, land.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeTransactionInProgress))

		stored, err := s.lands.FindByID(s.ctx, land.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusUnderTransaction, stored.Status)
	})

	s.Run("pending seller confirmation also blocks removal", func() {
		land := s.listed("Indlavadi")
		r, err := trademodels.NewBuyRequest(id.NewBuyRequestID(), land.ID, s.owner, id.NewUserID(), 590000, "", time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.requests.Create(context.Background(), r))

		_, err = s.service.Remove(s.ctx, s.owner, land.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeTransactionInProgress))
	})

	s.Run("non-owner is rejected", func() {
		land := s.listed("Thali")
		_, err := s.service.Remove(s.ctx, id.NewUserID(), land.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwner))
	})
}

func (s *MarketplaceSuite) TestBrowseAndMine() {
	cheap := s.listed("Vanakanahalli")
	s.ownedLand("Mugalur")

	s.Run("browse returns listed parcels only", func() {
		lands, err := s.service.Browse(s.ctx, models.LandFilter{Status: models.StatusAvailable})
		s.Require().NoError(err)
		s.Require().Len(lands, 1)
		s.Equal(cheap.ID, lands[0].ID)
	})

	s.Run("browse applies price bounds", func() {
		lands, err := s.service.Browse(s.ctx, models.LandFilter{MinPrice: 700000})
		s.Require().NoError(err)
		s.Empty(lands)
	})

	s.Run("inverted price range is rejected", func() {
		_, err := s.service.Browse(s.ctx, models.LandFilter{MinPrice: 10, MaxPrice: 5})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("my listings skips unlisted parcels", func() {
		mine, err := s.service.MyListings(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Require().Len(mine, 1)
		s.Equal(cheap.ID, mine[0].ID)
	})
}

func (s *MarketplaceSuite) TestWatchlist() {
	land := s.listed("Neralur")
	watcher := id.NewUserID()

	watching, err := s.service.ToggleWatch(s.ctx, watcher, land.ID)
	s.Require().NoError(err)
	s.True(watching)

	watched, err := s.service.Watched(s.ctx, watcher)
	s.Require().NoError(err)
	s.Require().Len(watched, 1)
	s.Equal(land.ID, watched[0].ID)

	watching, err = s.service.ToggleWatch(s.ctx, watcher, land.ID)
	s.Require().NoError(err)
	s.False(watching)

	_, err = s.service.ToggleWatch(s.ctx, watcher, id.NewLandID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
