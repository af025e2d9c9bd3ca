package engine

import (
	"fmt"

	"github.com/hupe1980/toolflow/core"
)

// eventQueue is the bounded FIFO owned by the run loop. It is only touched
// from the loop goroutine and needs no locking.
type eventQueue struct {
	items []core.Event
	head  int
	limit int
}

func newEventQueue(limit int) *eventQueue {
	return &eventQueue{limit: limit}
}

func (q *eventQueue) push(evs ...core.Event) error {
	for _, ev := range evs {
		if ev == nil {
			continue
		}
		if q.len() >= q.limit {
			return fmt.Errorf("%w: limit %d", core.ErrQueueOverflow, q.limit)
		}
		q.items = append(q.items, ev)
	}
	return nil
}

func (q *eventQueue) pop() core.Event {
	ev := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}

	return ev
}

func (q *eventQueue) len() int {
	return len(q.items) - q.head
}
