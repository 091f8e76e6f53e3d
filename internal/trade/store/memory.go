package store

import (
	"context"
	"sort"
	"sync"

	"landledger/internal/trade/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

// InMemory keeps buy requests in maps and enforces the one-active-request
// per land rule on Create, mirroring the partial unique index in Postgres.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.BuyRequestID]*models.BuyRequest
	active   map[id.LandID]id.BuyRequestID
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.BuyRequestID]*models.BuyRequest),
		active:   make(map[id.LandID]id.BuyRequestID),
	}
}

// Create inserts r. A second active request for the same land returns
// sentinel.ErrConflict.
func (s *InMemory) Create(ctx context.Context, r *models.BuyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if r.Status.IsActive() {
		if _, busy := s.active[r.LandID]; busy {
			return sentinel.ErrConflict
		}
		s.active[r.LandID] = r.ID
	}
	r.Version = 1
	s.requests[r.ID] = r.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.requests, r.ID)
		if s.active[r.LandID] == r.ID {
			delete(s.active, r.LandID)
		}
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

// FindByIDForUpdate is FindByID; the runner's shard lock serialises writers.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, requestID id.BuyRequestID) (*models.BuyRequest, error) {
	return s.FindByID(ctx, requestID)
}

// FindActiveByLand returns the land's active request or sentinel.ErrNotFound.
func (s *InMemory) FindActiveByLand(_ context.Context, landID id.LandID) (*models.BuyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requestID, ok := s.active[landID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.requests[requestID].Clone(), nil
}

// Update replaces r when its version matches, then bumps r.Version.
func (s *InMemory) Update(ctx context.Context, r *models.BuyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.requests[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Version != r.Version {
		return sentinel.ErrConflict
	}
	if r.Status.IsActive() {
		if holder, busy := s.active[r.LandID]; busy && holder != r.ID {
			return sentinel.ErrConflict
		}
	}
	prevActive, hadActive := s.active[r.LandID]

	r.Version++
	s.requests[r.ID] = r.Clone()
	if r.Status.IsActive() {
		s.active[r.LandID] = r.ID
	} else if hadActive && prevActive == r.ID {
		delete(s.active, r.LandID)
	}

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests[r.ID] = prev
		if hadActive {
			s.active[r.LandID] = prevActive
		} else {
			delete(s.active, r.LandID)
		}
	})
	return nil
}

// ListByUser returns requests where userID is buyer or seller, newest first.
func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.BuyRequest, error) {
	return s.list(func(r *models.BuyRequest) bool { return r.IsParty(userID) }), nil
}

// ListByStatus returns requests in status, oldest update first.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status) ([]*models.BuyRequest, error) {
	out := s.list(func(r *models.BuyRequest) bool { return r.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemory) list(match func(*models.BuyRequest) bool) []*models.BuyRequest {
	s.mu.RLock()
	out := make([]*models.BuyRequest, 0)
	for _, r := range s.requests {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
