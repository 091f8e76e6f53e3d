package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"landledger/internal/land/models"
	"landledger/internal/platform/tracing"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/requestcontext"
)

// Register adds an unclaimed parcel record. Only admins may register land.
// The asset id is generated here and regenerated on collision.
func (s *Service) Register(ctx context.Context, actor id.UserID, params models.RegistrationParams) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.Register")
	defer func() { tracing.End(span, err) }()

	if _, err := s.gate.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxAssetIDAttempts; attempt++ {
		now := requestcontext.Now(ctx)
		assetID, err := s.assetIDs.Generate(params.Location.State, params.Location.District, now)
		if err != nil {
			return nil, err
		}
		land, err := models.NewLand(id.NewLandID(), assetID, params, actor, now)
		if err != nil {
			return nil, validationError(err)
		}

		err = s.tx.RunInTx(ctx, LandKey(land.ID), func(ctx context.Context) error {
			if err := s.store.Create(ctx, land); err != nil {
				return err
			}
			return s.emit(ctx, audit.ComplianceEvent{
				Subject:  land.ID.String(),
				Action:   audit.EventLandRegistered,
				Decision: land.AssetID,
				ActorID:  actor.String(),
			})
		})
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.logger.WarnContext(ctx, "asset id collision, regenerating",
				"asset_id", assetID,
				"attempt", attempt,
				"request_id", requestcontext.RequestID(ctx),
			)
			continue
		}
		if err != nil {
			if _, ok := dErrors.CodeOf(err); ok {
				return nil, err
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register land")
		}

		span.SetAttributes(attribute.String("land_id", land.ID.String()), attribute.String("asset_id", land.AssetID))
		s.logger.InfoContext(ctx, "land registered",
			"land_id", land.ID.String(),
			"asset_id", land.AssetID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return land, nil
	}
	return nil, dErrors.New(dErrors.CodeDuplicateIdentifier, "could not allocate a unique asset id")
}

// Claim records userID as the first owner of an unclaimed AVAILABLE parcel.
func (s *Service) Claim(ctx context.Context, landID id.LandID, userID id.UserID) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.Claim", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	user, err := s.gate.RequireVerified(ctx, userID)
	if err != nil {
		return nil, err
	}

	var claimed *models.Land
	err = s.tx.RunInTx(ctx, LandKey(landID), func(ctx context.Context) error {
		land, err := s.loadForUpdate(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanClaim(); err != nil {
			return err
		}
		land.ApplyClaim(userID, user.FullName, "", requestcontext.Now(ctx))
		if err := s.save(ctx, land, land.Status); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:  userID,
			Subject: land.ID.String(),
			Action:  audit.EventLandClaimed,
			ActorID: userID.String(),
		}); err != nil {
			return err
		}
		claimed = land
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "land claimed",
		"land_id", landID.String(),
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return claimed, nil
}

// Verify records an admin's decision on a PENDING parcel record.
func (s *Service) Verify(ctx context.Context, admin id.UserID, landID id.LandID, decision models.VerificationStatus) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.Verify", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if _, err := s.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}

	var verified *models.Land
	err = s.tx.RunInTx(ctx, LandKey(landID), func(ctx context.Context) error {
		land, err := s.loadForUpdate(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanVerify(decision); err != nil {
			return validationError(err)
		}
		land.ApplyVerification(decision, admin, requestcontext.Now(ctx))
		if err := s.save(ctx, land, land.Status); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:   land.CurrentOwner,
			Subject:  land.ID.String(),
			Action:   audit.EventLandVerified,
			Decision: string(decision),
			ActorID:  admin.String(),
		}); err != nil {
			return err
		}
		verified = land
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, verified.CurrentOwner, "Land record "+string(decision),
		"The record for asset "+verified.AssetID+" was marked "+string(decision)+".")
	return verified, nil
}

// UpdateRecord applies admin corrections to a record that is not VERIFIED.
func (s *Service) UpdateRecord(ctx context.Context, admin id.UserID, landID id.LandID, update models.RecordUpdate) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.UpdateRecord", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if _, err := s.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}

	var updated *models.Land
	err = s.tx.RunInTx(ctx, LandKey(landID), func(ctx context.Context) error {
		land, err := s.loadForUpdate(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanUpdateRecord(); err != nil {
			return err
		}
		if err := land.ApplyRecordUpdate(update, requestcontext.Now(ctx)); err != nil {
			return validationError(err)
		}
		if err := s.save(ctx, land, land.Status); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:  land.CurrentOwner,
			Subject: land.ID.String(),
			Action:  audit.EventLandRecordCorrected,
			ActorID: admin.String(),
		}); err != nil {
			return err
		}
		updated = land
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
