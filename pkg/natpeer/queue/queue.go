// Package queue implements the simulator's Event Queue: a time-ordered
// min-heap of scheduled callbacks (spec.md §4.A). It is the only source of
// "now" and the only place randomness enters the simulator — callers inject
// a seeded *rand.Rand rather than reaching for an ambient one.
package queue

import (
	"container/heap"
	"math/rand"
)

// Fn is a scheduled callback.
type Fn func()

// entry is one scheduled event. seq breaks ties between equal timestamps in
// FIFO (insertion) order, per spec.md §4.A.
type entry struct {
	ts  int64
	seq uint64
	fn  Fn
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].ts != h[j].ts {
		return h[i].ts < h[j].ts
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) {
	*h = append(*h, x.(*entry))
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Queue is a min-heap of (ts, fn) entries keyed by ts, driving the
// simulator's notion of time. It is not safe for concurrent use — the whole
// point of the cooperative single-threaded model (spec.md §5) is that only
// one goroutine ever touches it.
type Queue struct {
	heap entryHeap
	ts   int64
	seq  uint64
	rand *rand.Rand
}

// New creates a Queue seeded with the given PRNG seed. The seed is the
// simulator's sole source of randomness (spec.md §4.A).
func New(seed int64) *Queue {
	return &Queue{
		heap: entryHeap{},
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Now returns the timestamp of the event currently (or most recently) being
// processed.
func (q *Queue) Now() int64 { return q.ts }

// Rand exposes the queue's seeded PRNG so Network/NAT/Peer code can make
// deterministic random choices (latency, loss, port allocation) without
// reaching for an ambient source.
func (q *Queue) Rand() *rand.Rand { return q.rand }

// Len reports the number of pending entries, used by the queue-depth gauge.
func (q *Queue) Len() int { return len(q.heap) }

// Add inserts fn to run at ts. ts must be >= Now(); insertion during event
// processing (i.e. from within a running fn) is explicitly supported and
// lands in correct heap order.
func (q *Queue) Add(ts int64, fn Fn) {
	if ts < q.ts {
		ts = q.ts
	}
	heap.Push(&q.heap, &entry{ts: ts, seq: q.seq, fn: fn})
	q.seq++
}

// Drain pops and invokes every entry with ts <= upTo, in (ts, insertion)
// order, advancing Now() to each entry's ts before invoking it. Entries
// added by a callback while Drain is running are eligible for the same
// Drain call if their ts still falls at or before upTo.
func (q *Queue) Drain(upTo int64) {
	for len(q.heap) > 0 && q.heap[0].ts <= upTo {
		e := heap.Pop(&q.heap).(*entry)
		q.ts = e.ts
		e.fn()
	}
}
