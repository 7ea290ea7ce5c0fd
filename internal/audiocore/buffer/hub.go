package buffer

import (
	"sync"
	"sync/atomic"
	"weak"
)

// Hub groups sample buffers that are cancelled together. Cancellation is
// terminal: once CancelPulls has been called every Pull on a member buffer
// returns ErrPullCancelled without blocking.
//
// Members are held weakly. A buffer that is dropped without Close leaves the
// hub once it has been garbage collected.
type Hub struct {
	cancelled atomic.Bool

	mu      sync.Mutex
	members map[weak.Pointer[SampleBuffer]]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{members: make(map[weak.Pointer[SampleBuffer]]struct{})}
}

var defaultHub = NewHub()

// DefaultHub returns the process-wide hub used by buffers created without WithHub.
func DefaultHub() *Hub {
	return defaultHub
}

// CancelPulls cancels every buffer on the default hub.
func CancelPulls() {
	defaultHub.CancelPulls()
}

// CancelPulls wakes every blocked pull of every member buffer and makes
// subsequent pulls fail fast. It is idempotent.
func (h *Hub) CancelPulls() {
	h.cancelled.Store(true)

	h.mu.Lock()
	members := make([]*SampleBuffer, 0, len(h.members))
	for wp := range h.members {
		if b := wp.Value(); b != nil {
			members = append(members, b)
		}
	}
	h.pruneLocked()
	h.mu.Unlock()

	for _, b := range members {
		b.wake()
	}
}

// Cancelled reports whether CancelPulls has been called.
func (h *Hub) Cancelled() bool {
	return h.cancelled.Load()
}

// Len returns the number of live registered buffers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruneLocked()
	return len(h.members)
}

func (h *Hub) register(b *SampleBuffer) {
	h.mu.Lock()
	h.pruneLocked()
	h.members[weak.Make(b)] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(b *SampleBuffer) {
	h.mu.Lock()
	delete(h.members, weak.Make(b))
	h.mu.Unlock()
}

// pruneLocked forgets members that were collected without Close.
func (h *Hub) pruneLocked() {
	for wp := range h.members {
		if wp.Value() == nil {
			delete(h.members, wp)
		}
	}
}
