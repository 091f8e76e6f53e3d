// Package service manages the user directory: lookup, login-time
// provisioning and admin-controlled KYC verification.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/email"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
	"landledger/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

type Service struct {
	store       Store
	tx          tx.Runner
	logger      *slog.Logger
	auditor     AuditPublisher
	adminEmails []string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithAdminEmails grants the ADMIN role to these addresses when they are
// first provisioned.
func WithAdminEmails(emails []string) Option {
	return func(s *Service) {
		for _, e := range emails {
			if normalized, err := email.Normalize(e); err == nil {
				s.adminEmails = append(s.adminEmails, normalized)
			}
		}
	}
}

func New(store Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{store: store, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUser reads the directory record. It is never cached so verification
// changes take effect on the next call.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// FindOrCreateByEmail returns the user registered under address, creating a
// PENDING user on first login.
func (s *Service) FindOrCreateByEmail(ctx context.Context, address string) (*models.User, error) {
	normalized, err := email.Normalize(address)
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindByEmail(ctx, normalized)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	user, err = models.NewUser(id.UserID(uuid.New()), normalized, email.DisplayName(normalized), requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if slices.Contains(s.adminEmails, normalized) {
		user.Role = models.RoleAdmin
		user.VerificationStatus = models.VerificationVerified
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// lost a race with a concurrent first login
			existing, findErr := s.store.FindByEmail(ctx, normalized)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load user")
			}
			return existing, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user provisioned",
		"user_id", user.ID.String(),
		"role", user.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	return user, nil
}

// EnsureAdmin provisions address as an ADMIN, promoting an existing user.
func (s *Service) EnsureAdmin(ctx context.Context, address string) (*models.User, error) {
	user, err := s.FindOrCreateByEmail(ctx, address)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() && user.IsVerified() {
		return user, nil
	}

	err = s.tx.RunInTx(ctx, "user:"+user.ID.String(), func(ctx context.Context) error {
		fresh, err := s.store.FindByID(ctx, user.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}
		fresh.Role = models.RoleAdmin
		if err := fresh.SetVerification(models.VerificationVerified, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Update(ctx, fresh); err != nil {
			return s.translateWriteError(err)
		}
		user = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetVerification records an admin KYC decision for userID.
func (s *Service) SetVerification(ctx context.Context, adminID, userID id.UserID, status models.VerificationStatus) (*models.User, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid verification status")
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var updated *models.User
	err := s.tx.RunInTx(ctx, "user:"+userID.String(), func(ctx context.Context) error {
		user, err := s.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		previous := user.VerificationStatus
		if err := user.SetVerification(status, requestcontext.Now(ctx)); err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := s.store.Update(ctx, user); err != nil {
			return s.translateWriteError(err)
		}
		if s.auditor != nil {
			if err := s.auditor.Emit(ctx, audit.ComplianceEvent{
				UserID:   user.ID,
				Subject:  user.ID.String(),
				Action:   audit.EventUserVerificationChanged,
				Decision: string(status),
				Reason:   "previous: " + string(previous),
				ActorID:  adminID.String(),
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
			}
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user verification changed",
		"user_id", userID.String(),
		"status", status,
		"admin_id", adminID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

func (s *Service) requireAdmin(ctx context.Context, adminID id.UserID) error {
	admin, err := s.GetUser(ctx, adminID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "admin role required")
		}
		return err
	}
	if !admin.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return nil
}

func (s *Service) translateWriteError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "user was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
}
