package store

import (
	"context"
	"sort"
	"sync"

	"landledger/internal/land/models"
	id "landledger/pkg/domain"
	"landledger/pkg/platform/sentinel"
	"landledger/pkg/platform/tx"
)

// InMemory is a map-backed land store. It holds deep copies so callers never
// mutate stored aggregates. Writes made inside a tx.ShardedRunner unit of work
// are undone when the unit of work fails.
type InMemory struct {
	mu      sync.RWMutex
	lands   map[id.LandID]*models.Land
	byAsset map[string]id.LandID
}

func NewInMemory() *InMemory {
	return &InMemory{
		lands:   make(map[id.LandID]*models.Land),
		byAsset: make(map[string]id.LandID),
	}
}

// Create inserts a new land. An asset id collision returns sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, land *models.Land) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byAsset[land.AssetID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.lands[land.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	land.Version = 1
	s.lands[land.ID] = land.Clone()
	s.byAsset[land.AssetID] = land.ID

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.lands, land.ID)
		delete(s.byAsset, land.AssetID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, landID id.LandID) (*models.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	land, ok := s.lands[landID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return land.Clone(), nil
}

// FindByIDForUpdate is FindByID; the runner's shard lock already serialises
// writers for this land.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, landID id.LandID) (*models.Land, error) {
	return s.FindByID(ctx, landID)
}

func (s *InMemory) FindByAssetID(_ context.Context, assetID string) (*models.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	landID, ok := s.byAsset[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.lands[landID].Clone(), nil
}

// Update replaces the stored land when land.Version matches the stored
// version, then bumps land.Version. A stale version returns sentinel.ErrConflict.
func (s *InMemory) Update(ctx context.Context, land *models.Land) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.lands[land.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if prev.Version != land.Version {
		return sentinel.ErrConflict
	}
	land.Version++
	s.lands[land.ID] = land.Clone()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lands[land.ID] = prev
	})
	return nil
}

// Search returns lands matching filter ordered by creation time, newest first.
func (s *InMemory) Search(_ context.Context, filter models.LandFilter) ([]*models.Land, error) {
	filter.Normalize()

	s.mu.RLock()
	matched := make([]*models.Land, 0)
	for _, land := range s.lands {
		if filter.Matches(land) {
			matched = append(matched, land.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].AssetID < matched[j].AssetID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return []*models.Land{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

// FindByIDs returns the lands that exist among ids, in the given order.
func (s *InMemory) FindByIDs(_ context.Context, ids []id.LandID) ([]*models.Land, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Land, 0, len(ids))
	for _, landID := range ids {
		if land, ok := s.lands[landID]; ok {
			out = append(out, land.Clone())
		}
	}
	return out, nil
}
