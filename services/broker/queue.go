package broker

import "callbackbroker/internals/models"

// compactAfter is how many consumed slots may pile up at the front before
// the backing array is shifted down.
const compactAfter = 64

// pending is a queued message plus the registry length at publish time.
// Only subscribers that existed when the message was published receive it.
type pending struct {
	message  models.Message
	audience int
}

// queue is a FIFO of pending messages. Callers hold Broker.mu.
type queue struct {
	items []pending
	head  int
}

func (q *queue) enqueue(message models.Message, audience int) {
	q.items = append(q.items, pending{message: message, audience: audience})
}

func (q *queue) len() int {
	return len(q.items) - q.head
}

func (q *queue) empty() bool {
	return q.len() == 0
}

// dequeueOldest removes and returns the message at the head of arrival order.
func (q *queue) dequeueOldest() (pending, bool) {
	if q.empty() {
		return pending{}, false
	}
	item := q.items[q.head]
	q.items[q.head] = pending{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactAfter && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item, true
}
