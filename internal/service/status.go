package service

import (
	"sync"
	"sync/atomic"

	"cosmicam"
)

// Publisher holds the single authoritative StatusSnapshot. Writers compose a
// complete new snapshot and replace the slot; the stored value is never
// mutated in place, so readers always see a self-consistent snapshot without
// taking a lock.
type Publisher struct {
	mu   sync.Mutex // serializes read-modify-replace between the two writing loops
	slot atomic.Pointer[cosmicam.StatusSnapshot]
}

func NewPublisher() *Publisher { return &Publisher{} }

// Latest returns the last published snapshot. ok is false before the first
// publish; the zero snapshot accompanies it as the defined "not yet
// available" state.
func (p *Publisher) Latest() (cosmicam.StatusSnapshot, bool) {
	if s := p.slot.Load(); s != nil {
		return *s, true
	}
	return cosmicam.StatusSnapshot{}, false
}

// Update derives the next snapshot from the current one and publishes it
// atomically. mod receives a copy of the previous snapshot (zero value before
// the first publish) and returns the full replacement.
func (p *Publisher) Update(mod func(prev cosmicam.StatusSnapshot) cosmicam.StatusSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var prev cosmicam.StatusSnapshot
	if s := p.slot.Load(); s != nil {
		prev = *s
	}
	next := mod(prev)
	p.slot.Store(&next)
}
