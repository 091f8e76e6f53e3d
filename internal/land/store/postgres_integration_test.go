//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landledger/internal/land/models"
	"landledger/internal/land/store"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
	"landledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	runner   *tx.SQLRunner
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
	s.store = store.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB, 5*time.Second)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "buy_requests", "lands")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newLand(assetID string) *models.Land {
	land, err := models.NewLand(id.NewLandID(), assetID, models.RegistrationParams{
		Location: models.Location{
			State: "Karnataka", District: "Mysuru", Taluka: "Hunsur", Village: "Bilikere",
			SurveyNumber: "12", SubDivision: "2A", Pincode: "571105",
		},
		Boundaries: models.Boundaries{North: "road"},
		Area:       models.Area{Sqft: 2400},
		LandType:   models.LandTypeResidential,
	}, id.UserID(uuid.New()), time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return land
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	land := s.newLand("KAMYS000001001")
	s.Require().NoError(s.store.Create(ctx, land))

	owner := id.UserID(uuid.New())
	land.ApplyClaim(owner, "Asha", "deed-1", land.CreatedAt)
	s.Require().NoError(land.ApplyListing(900000, "near lake", []string{"a.jpg", "b.jpg"}, land.CreatedAt))
	s.Require().NoError(s.store.Update(ctx, land))

	found, err := s.store.FindByAssetID(ctx, land.AssetID)
	s.Require().NoError(err)
	s.Equal(owner, found.CurrentOwner)
	s.Equal(models.StatusForSale, found.Status)
	s.Require().NotNil(found.MarketInfo)
	s.Equal([]string{"a.jpg", "b.jpg"}, found.MarketInfo.Images)
	s.Equal("road", found.Boundaries.North)
	s.Require().Len(found.OwnershipHistory, 1)
	s.Equal(int64(2), found.Version)
}

func (s *PostgresStoreSuite) TestDuplicateAssetID() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newLand("DUP")))
	err := s.store.Create(ctx, s.newLand("DUP"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestStaleVersionConflicts() {
	ctx := context.Background()
	land := s.newLand("STALE")
	s.Require().NoError(s.store.Create(ctx, land))

	stale := *land
	land.Status = models.StatusDisputed
	s.Require().NoError(s.store.Update(ctx, land))

	err := s.store.Update(ctx, &stale)
	s.ErrorIs(err, sentinel.ErrConflict)
}

// TestForUpdateSerialisesWriters has many transactions read-modify-write the
// same row; with FOR UPDATE none of them loses an update.
func (s *PostgresStoreSuite) TestForUpdateSerialisesWriters() {
	ctx := context.Background()
	land := s.newLand("LOCK")
	s.Require().NoError(s.store.Create(ctx, land))

	const writers = 20
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.runner.RunInTx(ctx, land.ID.String(), func(ctx context.Context) error {
				current, err := s.store.FindByIDForUpdate(ctx, land.ID)
				if err != nil {
					return err
				}
				current.Area.Sqft++
				return s.store.Update(ctx, current)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load())
	found, err := s.store.FindByID(ctx, land.ID)
	s.Require().NoError(err)
	s.Equal(float64(2400+writers), found.Area.Sqft)
	s.Equal(int64(1+writers), found.Version)
}
