package evaluate

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/traverse"
)

// Arrival is what a branch brings to a search state: what it cost to get
// there and the clock on reaching it.
type Arrival struct {
	Cost  time.Duration
	Clock time.Duration
}

// Covers reports whether a is no dearer and no later than o.
func (a Arrival) Covers(o Arrival) bool {
	return a.Cost <= o.Cost && a.Clock <= o.Clock
}

func (a Arrival) String() string {
	return fmt.Sprintf("%s (clock %s)", a.Cost, a.Clock)
}

// CostOracle answers cost dominance queries for the evaluator.
type CostOracle interface {
	// Dominated reports whether arrival at key cannot improve on an arrival
	// already recorded.
	Dominated(key traverse.SearchStateKey, arrival Arrival) bool
}

// CostMap records, per SearchStateKey, the arrivals no other recorded
// arrival covers. A cheaper arrival that reaches a state later does not
// replace an earlier one, since only the earlier one may still make an
// onward connection. It is not synchronised; the owning search guards it
// together with its queue.
type CostMap struct {
	best map[traverse.SearchStateKey][]Arrival
}

// NewCostMap creates an empty CostMap.
func NewCostMap() *CostMap {
	return &CostMap{best: make(map[traverse.SearchStateKey][]Arrival)}
}

// Arrivals returns the recorded arrivals at key, cheapest first.
func (m *CostMap) Arrivals(key traverse.SearchStateKey) []Arrival {
	out := make([]Arrival, len(m.best[key]))
	copy(out, m.best[key])
	return out
}

// Dominated reports whether key, or the same state reached with fewer
// changes, already has an arrival covering arrival.
func (m *CostMap) Dominated(key traverse.SearchStateKey, arrival Arrival) bool {
	for c := 0; c <= key.Changes; c++ {
		for _, b := range m.best[key.WithChanges(c)] {
			if b.Covers(arrival) {
				return true
			}
		}
	}
	return false
}

// Superseded reports whether a recorded arrival at key covers arrival and
// differs from it. Queued branches that are superseded need not be expanded.
func (m *CostMap) Superseded(key traverse.SearchStateKey, arrival Arrival) bool {
	for _, b := range m.best[key] {
		if b != arrival && b.Covers(arrival) {
			return true
		}
	}
	return false
}

// Record stores arrival for key unless a recorded arrival covers it, drops
// the arrivals it covers, and reports whether it was stored.
func (m *CostMap) Record(key traverse.SearchStateKey, arrival Arrival) bool {
	kept := m.best[key]
	for _, b := range kept {
		if b.Covers(arrival) {
			return false
		}
	}
	out := kept[:0]
	for _, b := range kept {
		if !arrival.Covers(b) {
			out = append(out, b)
		}
	}
	i := sort.Search(len(out), func(i int) bool { return out[i].Cost > arrival.Cost })
	out = append(out, Arrival{})
	copy(out[i+1:], out[i:])
	out[i] = arrival
	m.best[key] = out
	return true
}

// Len returns the number of keys recorded.
func (m *CostMap) Len() int { return len(m.best) }

// PreviousVisits remembers relationships excluded for reasons that depend
// only on the request, so later branches skip re-evaluating them.
type PreviousVisits struct {
	mu      sync.Mutex
	reasons map[graph.RelationshipID]Reason
	hits    int
}

// NewPreviousVisits creates an empty tracker.
func NewPreviousVisits() *PreviousVisits {
	return &PreviousVisits{reasons: make(map[graph.RelationshipID]Reason)}
}

// Record remembers that id was excluded for reason.
func (v *PreviousVisits) Record(id graph.RelationshipID, reason Reason) {
	v.mu.Lock()
	v.reasons[id] = reason
	v.mu.Unlock()
}

// Lookup returns the reason id was excluded, if any.
func (v *PreviousVisits) Lookup(id graph.RelationshipID) (Reason, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	r, ok := v.reasons[id]
	if ok {
		v.hits++
	}
	return r, ok
}

// Hits returns how many lookups were answered from the tracker.
func (v *PreviousVisits) Hits() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hits
}

// LowestCostSeen keeps the costs of the cheapest journeys accepted so far,
// bounded by the number of journeys requested.
type LowestCostSeen struct {
	mu    sync.Mutex
	limit int
	costs []time.Duration
}

// NewLowestCostSeen creates a tracker for limit journeys.
func NewLowestCostSeen(limit int) *LowestCostSeen {
	return &LowestCostSeen{limit: limit}
}

// Add records an accepted journey cost.
func (l *LowestCostSeen) Add(cost time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := sort.Search(len(l.costs), func(i int) bool { return l.costs[i] > cost })
	l.costs = append(l.costs, 0)
	copy(l.costs[i+1:], l.costs[i:])
	l.costs[i] = cost
	if len(l.costs) > l.limit {
		l.costs = l.costs[:l.limit]
	}
}

// CannotImprove reports whether a branch costing cost can no longer enter
// the result set because it is already full of cheaper journeys.
func (l *LowestCostSeen) CannotImprove(cost time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit > 0 && len(l.costs) >= l.limit && cost > l.costs[l.limit-1]
}

// Lowest returns the cheapest accepted cost.
func (l *LowestCostSeen) Lowest() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.costs) == 0 {
		return 0, false
	}
	return l.costs[0], true
}
