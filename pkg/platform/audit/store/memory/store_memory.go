package memory

import (
	"context"
	"sync"

	audit "landledger/pkg/platform/audit"
	"landledger/pkg/platform/tx"
)

// InMemoryStore keeps audit events in append order. An event appended inside
// a failed in-memory unit of work is removed again, mirroring the outbox.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []entry
	seq     uint64
}

type entry struct {
	seq   uint64
	event audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	s.seq++
	seq := s.seq
	s.entries = append(s.entries, entry{seq: seq, event: event})

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, e := range s.entries {
			if e.seq == seq {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (s *InMemoryStore) ListAll() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.event
	}
	return out
}

func (s *InMemoryStore) ListBySubject(subject string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.entries {
		if e.event.Subject == subject {
			out = append(out, e.event)
		}
	}
	return out
}

func (s *InMemoryStore) ListByAction(action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.entries {
		if e.event.Action == string(action) {
			out = append(out, e.event)
		}
	}
	return out
}
