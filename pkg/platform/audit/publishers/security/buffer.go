package security

import (
	"sync"

	audit "landledger/pkg/platform/audit"
)

const defaultCapacity = 4096

// ringBuffer is a bounded FIFO of security events. When full the oldest
// event is overwritten and counted as dropped.
type ringBuffer struct {
	mu       sync.Mutex
	events   []audit.SecurityEvent
	head     int
	tail     int
	count    int
	dropped  int64
	capacity int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &ringBuffer{
		events:   make([]audit.SecurityEvent, capacity),
		capacity: capacity,
	}
}

// push adds event and reports whether an older event had to be dropped.
func (b *ringBuffer) push(event audit.SecurityEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count == b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// popBatch removes up to n events, oldest first.
func (b *ringBuffer) popBatch(n int) []audit.SecurityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]audit.SecurityEvent, n)
	for i := range out {
		out[i] = b.events[b.tail]
		b.events[b.tail] = audit.SecurityEvent{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
