package session

import (
	"fmt"
	"time"
)

// queue is the ordered command set of one session. It is not safe for
// concurrent use; Session serializes access.
type queue struct {
	items map[int]*command
	order []int
	// pending commands always form the suffix order[firstPending:] because
	// enqueue appends and drain retrieves every pending entry at once.
	firstPending int
	next         int
}

func newQueue() queue {
	return queue{items: make(map[int]*command), next: 1}
}

func (q *queue) enqueue(p Payload, now time.Time) int {
	id := q.next
	q.next++
	q.items[id] = &command{id: id, payload: p, status: StatusPending, createdAt: now}
	q.order = append(q.order, id)
	return id
}

func (q *queue) drain(now time.Time) []Delivery {
	if q.firstPending == len(q.order) {
		return nil
	}
	out := make([]Delivery, 0, len(q.order)-q.firstPending)
	for _, id := range q.order[q.firstPending:] {
		c := q.items[id]
		c.status = StatusRetrieved
		c.retrievedAt = now
		out = append(out, Delivery{ID: id, Type: c.payload.Type(), Data: c.payload})
	}
	q.firstPending = len(q.order)
	return out
}

func (q *queue) report(id int, r Report, now time.Time) (*command, error) {
	c, ok := q.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCommandNotFound, id)
	}
	if c.status != StatusRetrieved {
		return c, fmt.Errorf("%w: command %d is %s", ErrInvalidState, id, c.status)
	}
	if r.Outcome == OutcomeSuccess {
		c.status = StatusCompleted
	} else {
		c.status = StatusFailed
	}
	c.result = r.Result
	c.err = r.Error
	c.completedAt = now
	return c, nil
}

func (q *queue) get(id int) (*command, bool) {
	c, ok := q.items[id]
	return c, ok
}

func (q *queue) views() []CommandView {
	out := make([]CommandView, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id].view())
	}
	return out
}

func (q *queue) len() int { return len(q.order) }
