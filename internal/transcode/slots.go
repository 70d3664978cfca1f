// Copyright (c) 2025 recviewd authors
// SPDX-License-Identifier: MIT

package transcode

import (
	"sync"

	"github.com/recviewd/recviewd/internal/metrics"
)

// SlotPool is the process-wide encode admission budget. Copy sessions never
// touch it; only encode sessions consume a slot. The pool is the single
// piece of cross-session shared mutable state in the engine.
type SlotPool struct {
	mu       sync.Mutex
	capacity int
	holders  map[string]struct{}
}

// NewSlotPool creates a pool with the given capacity.
func NewSlotPool(capacity int) *SlotPool {
	if capacity < 1 {
		capacity = 2
	}
	return &SlotPool{
		capacity: capacity,
		holders:  make(map[string]struct{}),
	}
}

// TryAcquire grants a slot to the session, or returns false when the pool is
// full. Non-blocking, never queues. Re-entrant: a session that already holds
// its slot is granted again without double-counting, so seek-triggered
// restarts reuse the held slot.
func (p *SlotPool) TryAcquire(sessionKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, held := p.holders[sessionKey]; held {
		return true
	}
	if len(p.holders) >= p.capacity {
		return false
	}
	p.holders[sessionKey] = struct{}{}
	metrics.SetEncodeSlotsInUse(float64(len(p.holders)))
	return true
}

// Release returns the session's slot to the pool. Idempotent: releasing a
// slot that is not held is a no-op, so every exit path (crash, preemption,
// reap) can call it unconditionally.
func (p *SlotPool) Release(sessionKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, held := p.holders[sessionKey]; !held {
		return
	}
	delete(p.holders, sessionKey)
	metrics.SetEncodeSlotsInUse(float64(len(p.holders)))
}

// Held reports whether the session currently holds a slot.
func (p *SlotPool) Held(sessionKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, held := p.holders[sessionKey]
	return held
}

// InUse returns the number of held slots.
func (p *SlotPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.holders)
}

// Capacity returns the fixed pool size.
func (p *SlotPool) Capacity() int {
	return p.capacity
}
