package models

import (
	"time"

	id "landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// VerificationStatus is the KYC state of a user. Only VERIFIED users may
// claim, list or buy land.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

func (v VerificationStatus) IsValid() bool {
	switch v {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

type User struct {
	ID                 id.UserID          `json:"id"`
	Email              string             `json:"email"`
	FullName           string             `json:"full_name"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Role               Role               `json:"role"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Version            int64              `json:"-"`
}

// NewUser builds a PENDING user with the USER role.
func NewUser(userID id.UserID, email, fullName string, now time.Time) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	return &User{
		ID:                 userID,
		Email:              email,
		FullName:           fullName,
		VerificationStatus: VerificationPending,
		Role:               RoleUser,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (u *User) IsVerified() bool {
	return u.VerificationStatus == VerificationVerified
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) SetVerification(status VerificationStatus, now time.Time) error {
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid verification status")
	}
	u.VerificationStatus = status
	u.UpdatedAt = now
	return nil
}
