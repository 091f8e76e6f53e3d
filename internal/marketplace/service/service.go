// Package service manages marketplace listings for claimed parcels and the
// per-user watchlist.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"landledger/internal/land/models"
	landservice "landledger/internal/land/service"
	"landledger/internal/platform/metrics"
	"landledger/internal/platform/tracing"
	trademodels "landledger/internal/trade/models"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	pstrings "landledger/pkg/platform/strings"
	"landledger/pkg/platform/tx"
	"landledger/pkg/requestcontext"
)

type LandStore interface {
	FindByID(ctx context.Context, landID id.LandID) (*models.Land, error)
	FindByIDForUpdate(ctx context.Context, landID id.LandID) (*models.Land, error)
	FindByIDs(ctx context.Context, ids []id.LandID) ([]*models.Land, error)
	Update(ctx context.Context, land *models.Land) error
	Search(ctx context.Context, filter models.LandFilter) ([]*models.Land, error)
}

// ActiveRequests answers whether a parcel has a buy request in flight.
type ActiveRequests interface {
	FindActiveByLand(ctx context.Context, landID id.LandID) (*trademodels.BuyRequest, error)
}

type Gate interface {
	RequireVerified(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type Watchlist interface {
	Toggle(ctx context.Context, userID id.UserID, landID id.LandID) (bool, error)
	List(ctx context.Context, userID id.UserID) ([]id.LandID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// ListingRequest is the seller's offer to sell.
type ListingRequest struct {
	AskingPrice int64
	Description string
	Images      []string
}

type Service struct {
	lands                 LandStore
	requests              ActiveRequests
	tx                    tx.Runner
	gate                  Gate
	watchlist             Watchlist
	auditor               AuditPublisher
	logger                *slog.Logger
	metrics               *metrics.Metrics
	requireVerifiedRecord bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithRequireVerifiedLand refuses listings for parcels whose paper record an
// admin has not VERIFIED.
func WithRequireVerifiedLand(required bool) Option {
	return func(s *Service) {
		s.requireVerifiedRecord = required
	}
}

func New(lands LandStore, requests ActiveRequests, runner tx.Runner, gate Gate, watchlist Watchlist, opts ...Option) *Service {
	s := &Service{
		lands:     lands,
		requests:  requests,
		tx:        runner,
		gate:      gate,
		watchlist: watchlist,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List puts an AVAILABLE parcel on the market.
func (s *Service) List(ctx context.Context, actor id.UserID, landID id.LandID, req ListingRequest) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "marketplace.List", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if req.AskingPrice <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "asking price must be positive")
	}
	if _, err := s.gate.RequireVerified(ctx, actor); err != nil {
		return nil, err
	}
	images := pstrings.DedupeAndTrim(req.Images)
	description := strings.TrimSpace(req.Description)

	var listed *models.Land
	err = s.tx.RunInTx(ctx, landservice.LandKey(landID), func(ctx context.Context) error {
		land, err := s.load(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanList(actor); err != nil {
			return err
		}
		if s.requireVerifiedRecord && land.VerificationStatus != models.VerificationVerified {
			return dErrors.New(dErrors.CodeInvalidState, "land record must be verified before listing")
		}
		from := land.Status
		if err := land.ApplyListing(req.AskingPrice, description, images, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, land, from); err != nil {
			return err
		}
		listed = land
		return s.emit(ctx, audit.EventListingCreated, land, actor)
	})
	if err != nil {
		return nil, err
	}
	return listed, nil
}

// Edit changes price, description or images of a FOR_SALE listing.
func (s *Service) Edit(ctx context.Context, actor id.UserID, landID id.LandID, update models.ListingUpdate) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "marketplace.Edit", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if update.AskingPrice != nil && *update.AskingPrice <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "asking price must be positive")
	}
	if update.Description != nil {
		trimmed := strings.TrimSpace(*update.Description)
		update.Description = &trimmed
	}
	if update.Images != nil {
		images := pstrings.DedupeAndTrim(*update.Images)
		update.Images = &images
	}

	var edited *models.Land
	err = s.tx.RunInTx(ctx, landservice.LandKey(landID), func(ctx context.Context) error {
		land, err := s.load(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanEditListing(actor); err != nil {
			return err
		}
		land.ApplyListingEdit(update, requestcontext.Now(ctx))
		if err := s.save(ctx, land, land.Status); err != nil {
			return err
		}
		edited = land
		return s.emit(ctx, audit.EventListingUpdated, land, actor)
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

// Remove withdraws the listing. A parcel with a buy request in flight cannot
// be withdrawn.
func (s *Service) Remove(ctx context.Context, actor id.UserID, landID id.LandID) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "marketplace.Remove", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	var removed *models.Land
	err = s.tx.RunInTx(ctx, landservice.LandKey(landID), func(ctx context.Context) error {
		land, err := s.load(ctx, landID)
		if err != nil {
			return err
		}
		if !land.IsOwnedBy(actor) {
			return dErrors.New(dErrors.CodeNotOwner, "caller does not own this land")
		}
		if _, err := s.requests.FindActiveByLand(ctx, landID); err == nil {
			return dErrors.New(dErrors.CodeTransactionInProgress, "land has an active buy request")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active buy requests")
		}
		if err := land.CanRemoveListing(actor); err != nil {
			return err
		}
		from := land.Status
		if err := land.ApplyListingRemoval(requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, land, from); err != nil {
			return err
		}
		removed = land
		return s.emit(ctx, audit.EventListingRemoved, land, actor)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Browse lists FOR_SALE parcels. Any status in filter is overridden.
func (s *Service) Browse(ctx context.Context, filter models.LandFilter) ([]*models.Land, error) {
	filter.Status = models.StatusForSale
	filter.Owner = id.UserID{}
	if filter.LandType != "" && !filter.LandType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid land type filter")
	}
	if filter.MinPrice < 0 || filter.MaxPrice < 0 || (filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice) {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid price range")
	}
	lands, err := s.lands.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to browse listings")
	}
	return lands, nil
}

// MyListings returns the actor's parcels that carry a listing, including
// ones locked in a transaction.
func (s *Service) MyListings(ctx context.Context, actor id.UserID) ([]*models.Land, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	owned, err := s.lands.Search(ctx, models.LandFilter{Owner: actor, Limit: models.MaxPageSize})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	out := make([]*models.Land, 0, len(owned))
	for _, land := range owned {
		if land.MarketInfo != nil {
			out = append(out, land)
		}
	}
	return out, nil
}

// ToggleWatch flips the actor's watch on a parcel and reports the new state.
func (s *Service) ToggleWatch(ctx context.Context, actor id.UserID, landID id.LandID) (bool, error) {
	if actor.IsNil() {
		return false, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.lands.FindByID(ctx, landID); err != nil {
		return false, translateFindError(err)
	}
	watching, err := s.watchlist.Toggle(ctx, actor, landID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update watchlist")
	}
	return watching, nil
}

// Watched returns the parcels the actor watches. Parcels that no longer
// exist are omitted.
func (s *Service) Watched(ctx context.Context, actor id.UserID) ([]*models.Land, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	ids, err := s.watchlist.List(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read watchlist")
	}
	if len(ids) == 0 {
		return []*models.Land{}, nil
	}
	lands, err := s.lands.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load watched lands")
	}
	return lands, nil
}

func (s *Service) load(ctx context.Context, landID id.LandID) (*models.Land, error) {
	land, err := s.lands.FindByIDForUpdate(ctx, landID)
	if err != nil {
		return nil, translateFindError(err)
	}
	return land, nil
}

func (s *Service) save(ctx context.Context, land *models.Land, from models.Status) error {
	if err := s.lands.Update(ctx, land); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "land was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update land")
	}
	to := land.Status
	tx.AfterCommit(ctx, func() { s.metrics.RecordLandTransition(string(from), string(to)) })
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, land *models.Land, actor id.UserID) error {
	if s.auditor == nil {
		return nil
	}
	event := audit.ComplianceEvent{
		UserID:  actor,
		Subject: land.ID.String(),
		Action:  action,
		ActorID: actor.String(),
	}
	if land.MarketInfo != nil {
		event.Decision = formatPrice(land.MarketInfo.AskingPrice)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func translateFindError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "land not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land")
}

func formatPrice(p int64) string {
	return strconv.FormatInt(p, 10)
}
