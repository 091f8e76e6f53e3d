// Package verification answers whether a user may take part in land
// workflows. Every answer comes from the user directory; nothing is cached,
// so a revoked verification blocks the user's next request.
package verification

import (
	"context"

	"landledger/internal/users/models"
	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

type Directory interface {
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

type Gate struct {
	directory Directory
}

func NewGate(directory Directory) *Gate {
	return &Gate{directory: directory}
}

// IsVerified reports whether userID has VERIFIED status. Unknown users are
// not verified.
func (g *Gate) IsVerified(ctx context.Context, userID id.UserID) (bool, error) {
	user, err := g.directory.GetUser(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsVerified(), nil
}

// RequireVerified returns the user or a NotVerified error.
func (g *Gate) RequireVerified(ctx context.Context, userID id.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := g.directory.GetUser(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotVerified, "user is not verified")
		}
		return nil, err
	}
	if !user.IsVerified() {
		return nil, dErrors.New(dErrors.CodeNotVerified, "user is not verified")
	}
	return user, nil
}

// RequireAdmin returns the admin user or a Forbidden error.
func (g *Gate) RequireAdmin(ctx context.Context, userID id.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := g.directory.GetUser(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
		}
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	return user, nil
}
