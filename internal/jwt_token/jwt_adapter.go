package jwttoken

import (
	"landledger/internal/platform/middleware"
)

// Validator exposes JWTService to the auth middleware, which only needs the
// caller id and role.
type Validator struct {
	service *JWTService
}

func NewValidator(service *JWTService) *Validator {
	return &Validator{service: service}
}

func (v *Validator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	claims, err := v.service.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{UserID: claims.UserID, Role: claims.Role}, nil
}
