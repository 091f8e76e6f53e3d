// Package transfer settles buy requests that await an admin decision.
// Approval moves ownership; rejection returns the parcel to the market.
// A request and parcel that disagree are reported, never repaired.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	landmodels "landledger/internal/land/models"
	landservice "landledger/internal/land/service"
	"landledger/internal/notify"
	"landledger/internal/platform/metrics"
	"landledger/internal/platform/tracing"
	"landledger/internal/trade/integrity"
	"landledger/internal/trade/models"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
	"landledger/pkg/requestcontext"
)

type RequestStore interface {
	FindByID(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error)
	FindByIDForUpdate(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error)
	Update(ctx context.Context, r *models.BuyRequest) error
	ListByStatus(ctx context.Context, status models.Status) ([]*models.BuyRequest, error)
}

type LandStore interface {
	FindByIDForUpdate(ctx context.Context, landID id.LandID) (*landmodels.Land, error)
	Update(ctx context.Context, land *landmodels.Land) error
}

type Gate interface {
	RequireAdmin(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type Directory interface {
	GetUser(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

type Engine struct {
	requests  RequestStore
	lands     LandStore
	tx        tx.Runner
	gate      Gate
	directory Directory
	auditor   AuditPublisher
	notifier  Notifier
	integrity *integrity.Reporter
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(e *Engine) {
		e.auditor = p
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

func WithIntegrityReporter(r *integrity.Reporter) Option {
	return func(e *Engine) {
		e.integrity = r
	}
}

func New(requests RequestStore, lands LandStore, runner tx.Runner, gate Gate, directory Directory, opts ...Option) *Engine {
	e := &Engine{
		requests:  requests,
		lands:     lands,
		tx:        runner,
		gate:      gate,
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.integrity == nil {
		e.integrity = integrity.NewReporter(e.logger, nil, e.metrics)
	}
	return e
}

// Approve transfers the parcel to the buyer. The parcel's open tenure is
// closed, the buyer's tenure opens, the listing is cleared and the request
// becomes APPROVED, all in one unit of work.
func (e *Engine) Approve(ctx context.Context, admin id.UserID, requestID id.BuyRequestID, comments string) (_ *models.BuyRequest, err error) {
	ctx, span := tracing.Start(ctx, "transfer.Approve", attribute.String("buy_request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	if _, err := e.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	current, err := e.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	buyerName := ""
	if buyer, err := e.directory.GetUser(ctx, current.Buyer); err == nil {
		buyerName = buyer.FullName
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, err
	}

	var approved *models.BuyRequest
	err = e.tx.RunInTx(ctx, landservice.LandKey(current.LandID), func(ctx context.Context) error {
		r, land, err := e.loadPair(ctx, current.LandID, requestID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if err := land.ApplyTransfer(r.Buyer, buyerName, "buy-request:"+r.ID.String(), now); err != nil {
			return err
		}
		if err := land.CheckOwnership(); err != nil {
			return err
		}
		r.ApplyApproval(admin, comments, now)
		if err := e.saveLand(ctx, land); err != nil {
			return err
		}
		to := land.Status
		tx.AfterCommit(ctx, func() {
			e.metrics.RecordLandTransition(string(landmodels.StatusUnderTransaction), string(landmodels.StatusSold))
			e.metrics.RecordLandTransition(string(landmodels.StatusSold), string(to))
		})
		if err := e.saveRequest(ctx, r); err != nil {
			return err
		}
		if err := e.emit(ctx, audit.ComplianceEvent{
			UserID:   r.Buyer,
			Subject:  land.ID.String(),
			Action:   audit.EventOwnershipTransferred,
			Decision: r.ID.String(),
			Reason:   r.AdminComments,
			ActorID:  admin.String(),
		}); err != nil {
			return err
		}
		approved = r
		return nil
	})
	if err != nil {
		return nil, e.integrity.Check(ctx, integrity.Violation{
			Operation: "approve",
			RequestID: requestID,
			LandID:    current.LandID,
			Actor:     admin,
		}, err)
	}

	e.metrics.RecordTransfer()
	e.logger.InfoContext(ctx, "ownership transferred",
		"buy_request_id", approved.ID.String(),
		"land_id", approved.LandID.String(),
		"buyer_id", approved.Buyer.String(),
		"seller_id", approved.Seller.String(),
		"admin_id", admin.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	e.notify(ctx, approved.Buyer, "Ownership transferred",
		"Request "+approved.ID.String()+" was approved. You are now the registered owner.")
	e.notify(ctx, approved.Seller, "Sale approved",
		"Request "+approved.ID.String()+" was approved and ownership has moved to the buyer.")
	return approved, nil
}

// Reject ends the request and unlocks the parcel. The listing returns
// exactly as it was before the seller confirmed.
func (e *Engine) Reject(ctx context.Context, admin id.UserID, requestID id.BuyRequestID, reason string) (_ *models.BuyRequest, err error) {
	ctx, span := tracing.Start(ctx, "transfer.Reject", attribute.String("buy_request_id", requestID.String()))
	defer func() { tracing.End(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if _, err := e.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	current, err := e.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var rejected *models.BuyRequest
	err = e.tx.RunInTx(ctx, landservice.LandKey(current.LandID), func(ctx context.Context) error {
		r, land, err := e.loadPair(ctx, current.LandID, requestID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if err := land.ApplyRevertToListing(now); err != nil {
			return err
		}
		r.ApplyRejection(admin, reason, now)
		if err := e.saveLand(ctx, land); err != nil {
			return err
		}
		to := land.Status
		tx.AfterCommit(ctx, func() {
			e.metrics.RecordLandTransition(string(landmodels.StatusUnderTransaction), string(to))
		})
		if err := e.saveRequest(ctx, r); err != nil {
			return err
		}
		if err := e.emit(ctx, audit.ComplianceEvent{
			UserID:   r.Buyer,
			Subject:  land.ID.String(),
			Action:   audit.EventTransferRejected,
			Decision: r.ID.String(),
			Reason:   reason,
			ActorID:  admin.String(),
		}); err != nil {
			return err
		}
		rejected = r
		return nil
	})
	if err != nil {
		return nil, e.integrity.Check(ctx, integrity.Violation{
			Operation: "reject",
			RequestID: requestID,
			LandID:    current.LandID,
			Actor:     admin,
		}, err)
	}

	e.notify(ctx, rejected.Buyer, "Transfer rejected",
		"Request "+rejected.ID.String()+" was rejected: "+reason)
	e.notify(ctx, rejected.Seller, "Transfer rejected",
		"Request "+rejected.ID.String()+" was rejected and your listing is open again.")
	return rejected, nil
}

// ListPending returns requests awaiting a decision, oldest first.
func (e *Engine) ListPending(ctx context.Context, admin id.UserID) ([]*models.BuyRequest, error) {
	if _, err := e.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	pending, err := e.requests.ListByStatus(ctx, models.StatusPendingAdminApproval)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending transactions")
	}
	return pending, nil
}

// loadPair re-reads the parcel and then its request for update and checks
// they agree. The parcel row is always locked first. A parcel under dispute
// is an expected hold, not a violation.
func (e *Engine) loadPair(ctx context.Context, landID id.LandID, requestID id.BuyRequestID) (*models.BuyRequest, *landmodels.Land, error) {
	land, err := e.lands.FindByIDForUpdate(ctx, landID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land")
	}
	r, err := e.requests.FindByIDForUpdate(ctx, requestID)
	if err != nil {
		return nil, nil, translateFindError(err)
	}
	if err := r.CanDecide(); err != nil {
		return nil, nil, err
	}
	if land == nil || r.LandID != landID {
		return nil, nil, dErrors.New(dErrors.CodeIntegrityViolation, "buy request references a missing land")
	}
	switch {
	case land.Status == landmodels.StatusDisputed:
		return nil, nil, dErrors.New(dErrors.CodeInvalidState, "land is under dispute")
	case land.Status != landmodels.StatusUnderTransaction:
		return nil, nil, dErrors.New(dErrors.CodeIntegrityViolation,
			"buy request awaits approval but land is "+string(land.Status))
	case !land.IsOwnedBy(r.Seller):
		return nil, nil, dErrors.New(dErrors.CodeIntegrityViolation, "buy request seller is not the current owner")
	}
	return r, land, nil
}

func (e *Engine) findRequest(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error) {
	r, err := e.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, translateFindError(err)
	}
	return r, nil
}

func (e *Engine) saveLand(ctx context.Context, land *landmodels.Land) error {
	if err := e.lands.Update(ctx, land); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "land was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update land")
	}
	return nil
}

func (e *Engine) saveRequest(ctx context.Context, r *models.BuyRequest) error {
	if err := e.requests.Update(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "buy request was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update buy request")
	}
	status := string(r.Status)
	tx.AfterCommit(ctx, func() { e.metrics.RecordBuyRequestStatus(status) })
	return nil
}

func (e *Engine) emit(ctx context.Context, event audit.ComplianceEvent) error {
	if e.auditor == nil {
		return nil
	}
	if err := e.auditor.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, userID id.UserID, subject, body string) {
	if e.notifier == nil || userID.IsNil() {
		return
	}
	e.notifier.Notify(ctx, notify.Message{UserID: userID, Subject: subject, Body: body})
}

func translateFindError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
}
