package linksim

import (
	"container/heap"
)

// An event is a message in flight on a link, delivered to port dst.port of
// component dst at time when.
type event struct {
	when int64
	seq  uint64

	origin string
	n      int
	hops   int

	dst  *component
	port string
}

// events implements heap.Interface, ordering by time and then by
// scheduling order.
type events []*event

func (h events) Len() int { return len(h) }

func (h events) Less(i, j int) bool {
	if h[i].when != h[j].when {
		return h[i].when < h[j].when
	}
	return h[i].seq < h[j].seq
}

func (h events) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *events) Push(x any) {
	*h = append(*h, x.(*event))
}

func (h *events) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

type eventQueue struct {
	events  events
	nextSeq uint64
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

func (q *eventQueue) push(e *event) {
	e.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.events, e)
}

func (q *eventQueue) len() int {
	return len(q.events)
}

func (q *eventQueue) pop() *event {
	return heap.Pop(&q.events).(*event)
}

func (q *eventQueue) peek() *event {
	return q.events[0]
}

// popBatch removes all events scheduled at the earliest time, in
// scheduling order.
func (q *eventQueue) popBatch() []*event {
	if q.len() == 0 {
		return nil
	}
	when := q.peek().when
	var batch []*event
	for q.len() > 0 && q.peek().when == when {
		batch = append(batch, q.pop())
	}
	return batch
}
