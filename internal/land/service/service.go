// Package service implements the asset registry: parcel registration,
// claiming, admin verification and corrections, digitalization, and dispute
// overrides.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"landledger/internal/documents"
	"landledger/internal/land/models"
	"landledger/internal/notify"
	"landledger/internal/platform/metrics"
	usermodels "landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

type Store interface {
	Create(ctx context.Context, land *models.Land) error
	FindByID(ctx context.Context, landID id.LandID) (*models.Land, error)
	FindByIDForUpdate(ctx context.Context, landID id.LandID) (*models.Land, error)
	FindByAssetID(ctx context.Context, assetID string) (*models.Land, error)
	Update(ctx context.Context, land *models.Land) error
	Search(ctx context.Context, filter models.LandFilter) ([]*models.Land, error)
}

type Gate interface {
	RequireVerified(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	RequireAdmin(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type Directory interface {
	GetUser(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type AssetIDGenerator interface {
	Generate(state, district string, now time.Time) (string, error)
}

// PendingRequestRejecter closes the active buy request of a parcel. It runs
// inside the caller's unit of work and reports whether a request was closed.
type PendingRequestRejecter interface {
	RejectActiveForLand(ctx context.Context, landID id.LandID, admin id.UserID, reason string) (bool, error)
}

type DocumentStore interface {
	Store(ctx context.Context, name, contentType string, content []byte) (documents.Handle, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

// maxAssetIDAttempts bounds regeneration after an asset id collision.
const maxAssetIDAttempts = 3

type Service struct {
	store         Store
	tx            tx.Runner
	gate          Gate
	directory     Directory
	assetIDs      AssetIDGenerator
	requests      PendingRequestRejecter
	documents     DocumentStore
	auditor       AuditPublisher
	notifier      Notifier
	logger        *slog.Logger
	metrics       *metrics.Metrics
	publicBaseURL string
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

func WithDocumentStore(d DocumentStore) Option {
	return func(s *Service) {
		s.documents = d
	}
}

// WithPendingRequestRejecter is required for ResolveDispute to close buy
// requests that were open when the parcel was disputed.
func WithPendingRequestRejecter(r PendingRequestRejecter) Option {
	return func(s *Service) {
		s.requests = r
	}
}

// WithPublicBaseURL sets the host printed in certificate verification links.
func WithPublicBaseURL(url string) Option {
	return func(s *Service) {
		s.publicBaseURL = url
	}
}

func New(store Store, runner tx.Runner, gate Gate, directory Directory, assetIDs AssetIDGenerator, opts ...Option) *Service {
	s := &Service{
		store:         store,
		tx:            runner,
		gate:          gate,
		directory:     directory,
		assetIDs:      assetIDs,
		logger:        slog.Default(),
		publicBaseURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LandKey is the unit-of-work key for every write touching landID. Buy
// request transitions use the same key so they serialise with registry and
// listing changes.
func LandKey(landID id.LandID) string {
	return "land:" + landID.String()
}

func (s *Service) Get(ctx context.Context, landID id.LandID) (*models.Land, error) {
	land, err := s.store.FindByID(ctx, landID)
	if err != nil {
		return nil, translateFindError(err)
	}
	return land, nil
}

func (s *Service) GetByAssetID(ctx context.Context, assetID string) (*models.Land, error) {
	if assetID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "asset id is required")
	}
	land, err := s.store.FindByAssetID(ctx, assetID)
	if err != nil {
		return nil, translateFindError(err)
	}
	return land, nil
}

func (s *Service) Search(ctx context.Context, filter models.LandFilter) ([]*models.Land, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status filter")
	}
	if filter.LandType != "" && !filter.LandType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid land type filter")
	}
	if filter.VerificationStatus != "" && !filter.VerificationStatus.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid verification status filter")
	}
	lands, err := s.store.Search(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search lands")
	}
	return lands, nil
}

// loadForUpdate reads the parcel inside a unit of work.
func (s *Service) loadForUpdate(ctx context.Context, landID id.LandID) (*models.Land, error) {
	land, err := s.store.FindByIDForUpdate(ctx, landID)
	if err != nil {
		return nil, translateFindError(err)
	}
	return land, nil
}

// save persists land and records the status change, if any.
func (s *Service) save(ctx context.Context, land *models.Land, from models.Status) error {
	if err := s.store.Update(ctx, land); err != nil {
		return translateWriteError(err)
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

// validationError turns model invariant failures into caller-facing
// validation errors.
func validationError(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func translateFindError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "land not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land")
}

func translateWriteError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "land not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "land was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update land")
	}
}
