// Package watchlist remembers which listed parcels a user is watching.
package watchlist

import (
	"context"
	"sync"

	id "landledger/pkg/domain"
)

// InMemory keeps watch sets per user in insertion order.
type InMemory struct {
	mu      sync.Mutex
	watched map[id.UserID][]id.LandID
}

func NewInMemory() *InMemory {
	return &InMemory{watched: make(map[id.UserID][]id.LandID)}
}

// Toggle adds landID to the user's set or removes it, reporting whether the
// user is now watching it.
func (w *InMemory) Toggle(_ context.Context, userID id.UserID, landID id.LandID) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.watched[userID]
	for i, existing := range list {
		if existing == landID {
			w.watched[userID] = append(list[:i:i], list[i+1:]...)
			return false, nil
		}
	}
	w.watched[userID] = append(list, landID)
	return true, nil
}

func (w *InMemory) List(_ context.Context, userID id.UserID) ([]id.LandID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]id.LandID{}, w.watched[userID]...), nil
}
