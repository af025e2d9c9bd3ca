package core

import "sync"

// Barrier buffers events for a fan-in step until the expected number has
// arrived. Any event counts toward the total; results are not matched to the
// calls that produced them.
type Barrier struct {
	buf []Event
	mu  sync.Mutex
}

// Add buffers ev. Once expected events are buffered it returns them in
// arrival order, clears itself and reports true. Otherwise it returns nil
// and false.
func (b *Barrier) Add(ev Event, expected int) ([]Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, ev)
	if len(b.buf) < expected {
		return nil, false
	}

	batch := b.buf
	b.buf = nil

	return batch, true
}

// Pending returns the number of buffered events.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Reset drops all buffered events.
func (b *Barrier) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = nil
}
