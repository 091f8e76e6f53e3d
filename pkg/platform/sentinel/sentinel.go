package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: optimistic version check failed, or a uniqueness rule on
//     active records was hit (e.g. a second active buy request for a land)
//   - ErrAlreadyUsed: a unique identifier (asset id, email) is already taken
//   - ErrExpired: ephemeral record (OTP) has expired
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
