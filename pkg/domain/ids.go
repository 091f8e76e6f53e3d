// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a UUID so a LandID can never be passed where a UserID
// is expected. Construct them with the Parse* functions at trust boundaries;
// the parsers reject empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "landledger/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	LandID       uuid.UUID
	BuyRequestID uuid.UUID
)

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewLandID() LandID             { return LandID(uuid.New()) }
func NewBuyRequestID() BuyRequestID { return BuyRequestID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseLandID(s string) (LandID, error) {
	u, err := parseUUID(s, "land id")
	return LandID(u), err
}

func ParseBuyRequestID(s string) (BuyRequestID, error) {
	u, err := parseUUID(s, "buy request id")
	return BuyRequestID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label)
	}
	return u, nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id LandID) String() string { return uuid.UUID(id).String() }
func (id LandID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id LandID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *LandID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id BuyRequestID) String() string { return uuid.UUID(id).String() }
func (id BuyRequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id BuyRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *BuyRequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
