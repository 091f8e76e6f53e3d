// Package store holds pending one-time codes keyed by email address.
package store

import (
	"context"
	"sync"
	"time"

	"landledger/internal/auth/models"
	"landledger/pkg/platform/sentinel"
)

// InMemory keeps challenges in a map. Expiry is judged by the caller
// against ExpiresAt; entries are removed on Delete or overwritten on Save.
type InMemory struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
}

func NewInMemory() *InMemory {
	return &InMemory{challenges: make(map[string]models.Challenge)}
}

func (s *InMemory) Save(_ context.Context, challenge *models.Challenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.Email] = *challenge
	return nil
}

func (s *InMemory) Find(_ context.Context, email string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}

func (s *InMemory) RecordAttempt(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[email]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	c.Attempts++
	s.challenges[email] = c
	return c.Attempts, nil
}

// Delete removes the challenge. A second Delete for the same address
// returns ErrNotFound, which makes consumption single use.
func (s *InMemory) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[email]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.challenges, email)
	return nil
}
