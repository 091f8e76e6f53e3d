package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	landmodels "landledger/internal/land/models"
	landservice "landledger/internal/land/service"
	"landledger/internal/platform/tracing"
	"landledger/internal/trade/integrity"
	"landledger/internal/trade/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

// Initiate opens a buy request against a listed parcel. The parcel stays
// FOR_SALE; only one active request per parcel is allowed.
func (s *Service) Initiate(ctx context.Context, landID id.LandID, buyerID id.UserID, price int64, message string) (_ *models.BuyRequest, err error) {
	ctx, span := tracing.Start(ctx, "trade.Initiate", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if price <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "agreed price must be positive")
	}
	if _, err := s.gate.RequireVerified(ctx, buyerID); err != nil {
		return nil, err
	}

	var created *models.BuyRequest
	err = s.tx.RunInTx(ctx, landservice.LandKey(landID), func(ctx context.Context) error {
		land, err := s.loadLand(ctx, landID)
		if err != nil {
			return err
		}
		if land.Status != landmodels.StatusForSale {
			return dErrors.New(dErrors.CodeInvalidState, "land is not listed for sale")
		}
		if _, err := s.requests.FindActiveByLand(ctx, landID); err == nil {
			return dErrors.New(dErrors.CodeTransactionInProgress, "land already has an active buy request")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check active buy requests")
		}

		r, err := models.NewBuyRequest(id.NewBuyRequestID(), landID, land.CurrentOwner, buyerID, price, message, requestcontext.Now(ctx))
		if err != nil {
			return validationError(err)
		}
		if err := s.requests.Create(ctx, r); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeTransactionInProgress, "land already has an active buy request")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create buy request")
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:   buyerID,
			Subject:  r.ID.String(),
			Action:   audit.EventBuyRequestCreated,
			Decision: strconv.FormatInt(price, 10),
			ActorID:  buyerID.String(),
		}); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBuyRequestStatus(string(created.Status))
	s.logger.InfoContext(ctx, "buy request created",
		"buy_request_id", created.ID.String(),
		"land_id", landID.String(),
		"buyer_id", buyerID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, created.Seller, "New buy request",
		"A buyer offered "+strconv.FormatInt(price, 10)+" for your land. Review request "+created.ID.String()+".")
	return created, nil
}

// SellerConfirm accepts the offer and locks the parcel in one unit of work.
func (s *Service) SellerConfirm(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (_ *models.BuyRequest, err error) {
	ctx, span := tracing.Start(ctx, "trade.SellerConfirm", attribute.String("buy_request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	var confirmed *models.BuyRequest
	var landID id.LandID
	err = s.runOnRequest(ctx, requestID, func(ctx context.Context, r *models.BuyRequest, land *landmodels.Land) error {
		landID = r.LandID
		if err := r.CanConfirm(actor); err != nil {
			return err
		}
		if land == nil {
			return dErrors.New(dErrors.CodeNotFound, "land not found")
		}
		if err := land.CanLock(r.Seller); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		from := land.Status
		if err := land.ApplyLock(now); err != nil {
			return err
		}
		r.ApplyConfirm(now)
		if err := s.saveLand(ctx, land, from); err != nil {
			return err
		}
		if err := s.saveRequest(ctx, r); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:   r.Buyer,
			Subject:  r.ID.String(),
			Action:   audit.EventBuyRequestConfirmed,
			Decision: string(r.Status),
			ActorID:  actor.String(),
		}); err != nil {
			return err
		}
		confirmed = r
		return nil
	})
	if err != nil {
		return nil, s.integrity.Check(ctx, integrity.Violation{
			Operation: "seller_confirm",
			RequestID: requestID,
			LandID:    landID,
			Actor:     actor,
		}, err)
	}

	s.notify(ctx, confirmed.Buyer, "Buy request confirmed",
		"The seller confirmed request "+confirmed.ID.String()+". It now awaits admin approval.")
	return confirmed, nil
}

// SellerDecline ends the request before the parcel is ever locked.
func (s *Service) SellerDecline(ctx context.Context, actor id.UserID, requestID id.BuyRequestID, reason string) (_ *models.BuyRequest, err error) {
	ctx, span := tracing.Start(ctx, "trade.SellerDecline", attribute.String("buy_request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	var declined *models.BuyRequest
	err = s.runOnRequest(ctx, requestID, func(ctx context.Context, r *models.BuyRequest, _ *landmodels.Land) error {
		if err := r.CanDecline(actor); err != nil {
			return err
		}
		r.ApplyDecline(reason, requestcontext.Now(ctx))
		if err := s.saveRequest(ctx, r); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:  r.Buyer,
			Subject: r.ID.String(),
			Action:  audit.EventBuyRequestDeclined,
			Reason:  r.RejectionReason,
			ActorID: actor.String(),
		}); err != nil {
			return err
		}
		declined = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, declined.Buyer, "Buy request declined",
		"The seller declined request "+declined.ID.String()+".")
	return declined, nil
}

// BuyerCancel withdraws the offer. Only possible before the seller confirms.
func (s *Service) BuyerCancel(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (_ *models.BuyRequest, err error) {
	ctx, span := tracing.Start(ctx, "trade.BuyerCancel", attribute.String("buy_request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	var cancelled *models.BuyRequest
	err = s.runOnRequest(ctx, requestID, func(ctx context.Context, r *models.BuyRequest, _ *landmodels.Land) error {
		if err := r.CanCancel(actor); err != nil {
			return err
		}
		r.ApplyCancel(requestcontext.Now(ctx))
		if err := s.saveRequest(ctx, r); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:  r.Buyer,
			Subject: r.ID.String(),
			Action:  audit.EventBuyRequestCancelled,
			ActorID: actor.String(),
		}); err != nil {
			return err
		}
		cancelled = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, cancelled.Seller, "Buy request cancelled",
		"The buyer withdrew request "+cancelled.ID.String()+".")
	return cancelled, nil
}

// Get returns the request to one of its parties or an admin.
func (s *Service) Get(ctx context.Context, actor id.UserID, requestID id.BuyRequestID) (*models.BuyRequest, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	r, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, translateFindError(err)
	}
	if r.IsParty(actor) {
		return r, nil
	}
	if _, err := s.gate.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	return r, nil
}

// ListForUser returns every request where actor is buyer or seller, newest first.
func (s *Service) ListForUser(ctx context.Context, actor id.UserID) ([]*models.BuyRequest, error) {
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	requests, err := s.requests.ListByUser(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list buy requests")
	}
	return requests, nil
}

// RejectActiveForLand closes the parcel's active request, if any. It must be
// called inside the caller's unit of work for landID and never opens one.
func (s *Service) RejectActiveForLand(ctx context.Context, landID id.LandID, admin id.UserID, reason string) (bool, error) {
	r, err := s.requests.FindActiveByLand(ctx, landID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active buy request")
	}
	reason = strings.TrimSpace(reason)
	if err := r.ApplyDisputeClosure(admin, reason, requestcontext.Now(ctx)); err != nil {
		return false, err
	}
	if err := s.saveRequest(ctx, r); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "buy request closed by dispute resolution",
		"buy_request_id", r.ID.String(),
		"land_id", landID.String(),
		"admin_id", admin.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return true, nil
}
