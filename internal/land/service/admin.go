package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"landledger/internal/land/certificate"
	"landledger/internal/land/models"
	"landledger/internal/platform/tracing"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	audit "landledger/pkg/platform/audit"
	"landledger/pkg/requestcontext"
)

// Digitalize issues the parcel's certificate. It is monotonic: once a parcel
// is digitalized further calls return it unchanged.
func (s *Service) Digitalize(ctx context.Context, admin id.UserID, landID id.LandID) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.Digitalize", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if _, err := s.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	if s.documents == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "document store is not configured")
	}

	land, err := s.Get(ctx, landID)
	if err != nil {
		return nil, err
	}
	if land.DigitalDocument.IsDigitalized {
		return land, nil
	}

	// Rendering and upload happen outside the unit of work; the stored
	// document is content addressed so a lost race only leaves an unused copy.
	now := requestcontext.Now(ctx)
	verifyURL := certificate.VerificationURL(s.publicBaseURL, land.AssetID)
	var owner *certificate.Owner
	if land.IsClaimed() {
		user, err := s.directory.GetUser(ctx, land.CurrentOwner)
		if err != nil {
			return nil, err
		}
		owner = &certificate.Owner{Name: user.FullName, Email: user.Email}
	}
	pdf, err := certificate.Render(land, owner, verifyURL, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render certificate")
	}
	handle, err := s.documents.Store(ctx, "certificate-"+land.AssetID+".pdf", "application/pdf", pdf)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
	}

	var result *models.Land
	err = s.tx.RunInTx(ctx, LandKey(landID), func(ctx context.Context) error {
		fresh, err := s.loadForUpdate(ctx, landID)
		if err != nil {
			return err
		}
		changed := fresh.ApplyDigitalization(models.DigitalDocument{
			CertificateURL:  handle.URL,
			CertificateHash: handle.Hash,
			QRCode:          verifyURL,
		}, now)
		result = fresh
		if !changed {
			return nil
		}
		if err := s.save(ctx, fresh, fresh.Status); err != nil {
			return err
		}
		return s.emit(ctx, audit.ComplianceEvent{
			UserID:   fresh.CurrentOwner,
			Subject:  fresh.ID.String(),
			Action:   audit.EventLandDigitalized,
			Decision: handle.Hash,
			ActorID:  admin.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, result.CurrentOwner, "Land certificate issued",
		"A digital certificate for asset "+result.AssetID+" is available at "+result.DigitalDocument.CertificateURL)
	return result, nil
}

// MarkDisputed puts the parcel under an admin hold. Open buy requests stay as
// they are until the dispute is resolved.
func (s *Service) MarkDisputed(ctx context.Context, admin id.UserID, landID id.LandID, reason string) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.MarkDisputed", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "dispute reason is required")
	}
	if _, err := s.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}

	var disputed *models.Land
	err = s.tx.RunInTx(ctx, LandKey(landID), func(ctx context.Context) error {
		land, err := s.loadForUpdate(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanDispute(); err != nil {
			return err
		}
		from := land.Status
		if err := land.ApplyDispute(requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, land, from); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:   land.CurrentOwner,
			Subject:  land.ID.String(),
			Action:   audit.EventLandDisputed,
			Decision: string(from),
			Reason:   reason,
			ActorID:  admin.String(),
		}); err != nil {
			return err
		}
		disputed = land
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WarnContext(ctx, "land marked disputed",
		"land_id", landID.String(),
		"admin_id", admin.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.notify(ctx, disputed.CurrentOwner, "Land under dispute",
		"Asset "+disputed.AssetID+" has been placed under dispute: "+reason)
	return disputed, nil
}

// ResolveDispute returns a disputed parcel to AVAILABLE. Any buy request left
// open is rejected in the same unit of work and the listing is cleared.
func (s *Service) ResolveDispute(ctx context.Context, admin id.UserID, landID id.LandID, resolution string) (_ *models.Land, err error) {
	ctx, span := tracing.Start(ctx, "land.ResolveDispute", attribute.String("land_id", landID.String()))
	defer func() { tracing.End(span, err) }()

	if _, err := s.gate.RequireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		resolution = "dispute resolved"
	}

	var resolved *models.Land
	err = s.tx.RunInTx(ctx, LandKey(landID), func(ctx context.Context) error {
		land, err := s.loadForUpdate(ctx, landID)
		if err != nil {
			return err
		}
		if err := land.CanResolveDispute(); err != nil {
			return err
		}
		if s.requests != nil {
			if _, err := s.requests.RejectActiveForLand(ctx, landID, admin, "land dispute: "+resolution); err != nil {
				return err
			}
		}
		if err := land.ApplyDisputeResolution(requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.save(ctx, land, models.StatusDisputed); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.ComplianceEvent{
			UserID:  land.CurrentOwner,
			Subject: land.ID.String(),
			Action:  audit.EventLandDisputeResolved,
			Reason:  resolution,
			ActorID: admin.String(),
		}); err != nil {
			return err
		}
		resolved = land
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, resolved.CurrentOwner, "Land dispute resolved",
		"Asset "+resolved.AssetID+" is available again: "+resolution)
	return resolved, nil
}
