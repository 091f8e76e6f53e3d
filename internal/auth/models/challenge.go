package models

import "time"

// Purpose records why a code was sent. The code only authenticates the
// address; every purpose ends in the same login.
type Purpose string

const (
	PurposeRegistration Purpose = "REGISTRATION"
	PurposeLogin        Purpose = "LOGIN"
	PurposeEmailChange  Purpose = "EMAIL_CHANGE"
)

func (p Purpose) IsValid() bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposeEmailChange:
		return true
	}
	return false
}

// Challenge is the pending one-time code for an address. Only the bcrypt
// hash of the code is kept.
type Challenge struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"code_hash"`
	Purpose   Purpose   `json:"purpose"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Challenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// LoginResult is returned after a code is accepted.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	Verified    bool      `json:"verified"`
}
