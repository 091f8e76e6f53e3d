// Package service runs the buy request workflow: a buyer's offer, the
// seller's confirmation that locks the parcel, and the ways a request ends
// before an admin decision.
package service

import (
	"context"
	"errors"
	"log/slog"

	landmodels "landledger/internal/land/models"
	landservice "landledger/internal/land/service"
	"landledger/internal/notify"
	"landledger/internal/platform/metrics"
	"landledger/internal/trade/integrity"
	"landledger/internal/trade/models"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

type RequestStore interface {
	Create(ctx context.Context, r *models.BuyRequest) error
	FindByID(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error)
	FindByIDForUpdate(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error)
	FindActiveByLand(ctx context.Context, landID id.LandID) (*models.BuyRequest, error)
	Update(ctx context.Context, r *models.BuyRequest) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.BuyRequest, error)
}

// LandStore is the slice of the land registry the workflow needs. Every
// change goes through the land aggregate's Can*/Apply* transitions.
type LandStore interface {
	FindByIDForUpdate(ctx context.Context, landID id.LandID) (*landmodels.Land, error)
	Update(ctx context.Context, land *landmodels.Land) error
}

type Gate interface {
	RequireVerified(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	RequireAdmin(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

type Service struct {
	requests  RequestStore
	lands     LandStore
	tx        tx.Runner
	gate      Gate
	auditor   AuditPublisher
	notifier  Notifier
	integrity *integrity.Reporter
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithIntegrityReporter(r *integrity.Reporter) Option {
	return func(s *Service) {
		s.integrity = r
	}
}

func New(requests RequestStore, lands LandStore, runner tx.Runner, gate Gate, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		lands:    lands,
		tx:       runner,
		gate:     gate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.integrity == nil {
		s.integrity = integrity.NewReporter(s.logger, nil, s.metrics)
	}
	return s
}

// runOnRequest loads the request to find its parcel, then runs fn under the
// parcel's unit of work. The parcel row is locked before the request row, the
// same order marketplace removal and dispute resolution use. land is nil when
// the parcel no longer exists.
func (s *Service) runOnRequest(ctx context.Context, requestID id.BuyRequestID, fn func(ctx context.Context, r *models.BuyRequest, land *landmodels.Land) error) error {
	current, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return translateFindError(err)
	}
	return s.tx.RunInTx(ctx, landservice.LandKey(current.LandID), func(ctx context.Context) error {
		land, err := s.lands.FindByIDForUpdate(ctx, current.LandID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land")
		}
		r, err := s.requests.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return translateFindError(err)
		}
		if r.LandID != current.LandID {
			return dErrors.New(dErrors.CodeConflict, "buy request was modified concurrently")
		}
		return fn(ctx, r, land)
	})
}

func (s *Service) saveRequest(ctx context.Context, r *models.BuyRequest) error {
	if err := s.requests.Update(ctx, r); err != nil {
		return translateWriteError(err)
	}
	status := string(r.Status)
	tx.AfterCommit(ctx, func() { s.metrics.RecordBuyRequestStatus(status) })
	return nil
}

func (s *Service) loadLand(ctx context.Context, landID id.LandID) (*landmodels.Land, error) {
	land, err := s.lands.FindByIDForUpdate(ctx, landID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "land not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land")
	}
	return land, nil
}

func (s *Service) saveLand(ctx context.Context, land *landmodels.Land, from landmodels.Status) error {
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

func (s *Service) emit(ctx context.Context, event audit.ComplianceEvent) error {
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID id.UserID, subject, body string) {
	if s.notifier == nil || userID.IsNil() {
		return
	}
	s.notifier.Notify(ctx, notify.Message{UserID: userID, Subject: subject, Body: body})
}

func validationError(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func translateFindError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "buy request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load buy request")
}

func translateWriteError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "buy request not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "buy request was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update buy request")
	}
}
