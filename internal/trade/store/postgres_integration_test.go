//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	landmodels "landledger/internal/land/models"
	landstore "landledger/internal/land/store"
	"landledger/internal/trade/models"
	"landledger/internal/trade/store"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	lands    *landstore.PostgresStore
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.lands = landstore.NewPostgres(s.postgres.DB)
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "buy_requests", "lands")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) landID() id.LandID {
	land, err := landmodels.NewLand(id.NewLandID(), "KAMYS"+id.NewLandID().String()[:8], landmodels.RegistrationParams{
		Location: landmodels.Location{
			State: "Karnataka", District: "Mysuru", Taluka: "Hunsur", Village: "Bilikere",
			SurveyNumber: "7", SubDivision: "C", Pincode: "571105",
		},
		Area:     landmodels.Area{Guntas: 20},
		LandType: landmodels.LandTypeAgricultural,
	}, id.NewUserID(), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.lands.Create(context.Background(), land))
	return land.ID
}

func (s *PostgresStoreSuite) newRequest(landID id.LandID) *models.BuyRequest {
	r, err := models.NewBuyRequest(id.NewBuyRequestID(), landID, id.NewUserID(), id.NewUserID(), 300000, "cash", s.now)
	s.Require().NoError(err)
	return r
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	r := s.newRequest(s.landID())
	s.Require().NoError(s.store.Create(ctx, r))

	r.ApplyConfirm(s.now.Add(time.Minute))
	s.Require().NoError(s.store.Update(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPendingAdminApproval, found.Status)
	s.Equal("cash", found.Message)
	s.Equal(int64(2), found.Version)
	s.Require().Len(found.Timeline, 2)
	s.Equal(models.EventSellerConfirmed, found.Timeline[1].Event)
	s.Equal(r.Seller, found.Timeline[1].PerformedBy)

	active, err := s.store.FindActiveByLand(ctx, r.LandID)
	s.Require().NoError(err)
	s.Equal(r.ID, active.ID)

	pending, err := s.store.ListByStatus(ctx, models.StatusPendingAdminApproval)
	s.Require().NoError(err)
	s.Len(pending, 1)

	mine, err := s.store.ListByUser(ctx, r.Buyer)
	s.Require().NoError(err)
	s.Len(mine, 1)
}

func (s *PostgresStoreSuite) TestStaleVersionConflicts() {
	ctx := context.Background()
	r := s.newRequest(s.landID())
	s.Require().NoError(s.store.Create(ctx, r))
	stale := r.Clone()

	r.ApplyConfirm(s.now)
	s.Require().NoError(s.store.Update(ctx, r))

	stale.ApplyCancel(s.now)
	s.ErrorIs(s.store.Update(ctx, stale), sentinel.ErrConflict)

	missing := s.newRequest(r.LandID)
	s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestTerminalRequestFreesLand() {
	ctx := context.Background()
	landID := s.landID()
	first := s.newRequest(landID)
	s.Require().NoError(s.store.Create(ctx, first))
	first.ApplyDecline("no", s.now)
	s.Require().NoError(s.store.Update(ctx, first))

	_, err := s.store.FindActiveByLand(ctx, landID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Create(ctx, s.newRequest(landID)))
}

// TestConcurrentCreate races inserts for one land; the partial unique index
// admits exactly one.
func (s *PostgresStoreSuite) TestConcurrentCreate() {
	ctx := context.Background()
	landID := s.landID()

	const buyers = 20
	var wg sync.WaitGroup
	var created, conflicts, other atomic.Int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, s.newRequest(landID))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(buyers-1), conflicts.Load())
	s.Equal(int32(0), other.Load())
}
