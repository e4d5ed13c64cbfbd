package search

import (
	"container/heap"
	"sync"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/evaluate"
	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/traverse"
)

// entry is a branch waiting in the frontier.
type entry struct {
	key      traverse.SearchStateKey
	path     *graph.Path
	state    *traverse.JourneyState
	finished bool
	seq      uint64
	index    int // heap position, -1 once popped
}

func (e *entry) cost() time.Duration { return e.state.Cost }

func (e *entry) arrival() evaluate.Arrival {
	return evaluate.Arrival{Cost: e.state.Cost, Clock: e.state.Clock}
}

// before orders entries by cost, then fewer hops, then insertion sequence.
func (e *entry) before(o *entry) bool {
	if e.cost() != o.cost() {
		return e.cost() < o.cost()
	}
	if e.path.Len() != o.path.Len() {
		return e.path.Len() < o.path.Len()
	}
	return e.seq < o.seq
}

type queue interface {
	// upsert queues e, replacing a still-queued entry with the same key
	// when e covers it.
	upsert(e *entry)
	push(e *entry)
	pop() *entry
	len() int
}

// entryHeap implements heap.Interface as an indexed min-heap.
type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].before(h[j]) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// costQueue pops the cheapest entry and supports decrease-key.
type costQueue struct {
	h     entryHeap
	byKey map[traverse.SearchStateKey]*entry
}

func newCostQueue() *costQueue {
	return &costQueue{byKey: make(map[traverse.SearchStateKey]*entry)}
}

func (q *costQueue) upsert(e *entry) {
	if old, ok := q.byKey[e.key]; ok && old.index >= 0 && e.arrival().Covers(old.arrival()) {
		old.path, old.state, old.seq = e.path, e.state, e.seq
		heap.Fix(&q.h, old.index)
		return
	}
	q.byKey[e.key] = e
	heap.Push(&q.h, e)
}

func (q *costQueue) push(e *entry) { heap.Push(&q.h, e) }

func (q *costQueue) pop() *entry {
	e := heap.Pop(&q.h).(*entry)
	if !e.finished && q.byKey[e.key] == e {
		delete(q.byKey, e.key)
	}
	return e
}

func (q *costQueue) len() int { return q.h.Len() }

// stack pops the most recently pushed entry. Superseded entries stay in
// place and are skipped when popped.
type stack struct {
	items []*entry
}

func (s *stack) upsert(e *entry) { s.push(e) }
func (s *stack) push(e *entry)   { s.items = append(s.items, e) }

func (s *stack) pop() *entry {
	n := len(s.items)
	e := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	return e
}

func (s *stack) len() int { return len(s.items) }

// frontier couples the cost map with the queue; both change under one lock
// so that every recorded cost is reflected in the queue.
type frontier struct {
	mu    sync.Mutex
	costs *evaluate.CostMap
	q     queue
	seq   uint64
	peak  int
}

func newFrontier(policy journey.ExpansionPolicy) *frontier {
	f := &frontier{costs: evaluate.NewCostMap()}
	if policy == journey.DepthFirst {
		f.q = &stack{}
	} else {
		f.q = newCostQueue()
	}
	return f
}

// Dominated implements evaluate.CostOracle.
func (f *frontier) Dominated(key traverse.SearchStateKey, arrival evaluate.Arrival) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.costs.Dominated(key, arrival)
}

// offer records the branch arrival and queues it unless an earlier arrival
// at the key is both cheaper and sooner.
func (f *frontier) offer(key traverse.SearchStateKey, path *graph.Path, js *traverse.JourneyState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.costs.Record(key, evaluate.Arrival{Cost: js.Cost, Clock: js.Clock}) {
		return false
	}
	f.seq++
	f.q.upsert(&entry{key: key, path: path, state: js, seq: f.seq, index: -1})
	f.track()
	return true
}

// offerFinished queues a completed journey so it is accepted in cost order.
func (f *frontier) offerFinished(key traverse.SearchStateKey, path *graph.Path, js *traverse.JourneyState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.q.push(&entry{key: key, path: path, state: js, finished: true, seq: f.seq, index: -1})
	f.track()
}

func (f *frontier) track() {
	if n := f.q.len(); n > f.peak {
		f.peak = n
	}
}

// next pops the next live entry, skipping entries superseded by an arrival
// at the same key that is no dearer and no later.
func (f *frontier) next() (*entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.q.len() > 0 {
		e := f.q.pop()
		if e.finished {
			return e, true
		}
		if f.costs.Superseded(e.key, e.arrival()) {
			continue
		}
		return e, true
	}
	return nil, false
}

func (f *frontier) stats() (recorded, peak int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.costs.Len(), f.peak
}
