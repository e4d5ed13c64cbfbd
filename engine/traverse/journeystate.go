package traverse

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
)

// Departure is the outcome of resolving a TO_SERVICE step against the clock.
type Departure struct {
	// Running is false when the service operates on none of the candidate dates.
	Running bool
	// Resolved is false when every running candidate left before the clock.
	Resolved bool
	// Date is the service date the departure belongs to.
	Date graph.Date
	// At is the departure as an offset from midnight of the query date.
	At time.Duration
	// Wait is the time spent at the stop before At.
	Wait time.Duration
	// Boarding is true when the step chose the service right after boarding.
	Boarding bool
}

// JourneyState is the per-branch record carried alongside a path. It is owned
// by exactly one branch; Machine.Next returns a fresh copy.
type JourneyState struct {
	State State
	// Cost is the sum of relationship costs traversed.
	Cost time.Duration
	// Clock is the current time as an offset from midnight of the query date.
	Clock time.Duration
	// Boardings counts BOARD and INTERCHANGE_BOARD steps.
	Boardings int
	Trips     journey.TripSet
	Mode      graph.TransportMode
	// FirstDeparture is the departure of the first service taken, valid when
	// Departed is set.
	FirstDeparture time.Duration
	Departed       bool
	// Last describes the most recent TO_SERVICE resolution.
	Last       Departure
	diversions []graph.RelationshipID
}

// Changes is the number of vehicle changes so far.
func (js *JourneyState) Changes() int {
	if js.Boardings <= 1 {
		return 0
	}
	return js.Boardings - 1
}

// Diversions returns the ids of diversions taken, sorted.
func (js *JourneyState) Diversions() []graph.RelationshipID {
	out := make([]graph.RelationshipID, len(js.diversions))
	copy(out, js.diversions)
	return out
}

func (js *JourneyState) addDiversion(id graph.RelationshipID) {
	i := sort.Search(len(js.diversions), func(i int) bool { return js.diversions[i] >= id })
	if i < len(js.diversions) && js.diversions[i] == id {
		return
	}
	js.diversions = append(js.diversions, "")
	copy(js.diversions[i+1:], js.diversions[i:])
	js.diversions[i] = id
}

// Clone returns a deep copy.
func (js *JourneyState) Clone() *JourneyState {
	c := *js
	if js.diversions != nil {
		c.diversions = make([]graph.RelationshipID, len(js.diversions))
		copy(c.diversions, js.diversions)
	}
	return &c
}

func (js *JourneyState) String() string {
	return fmt.Sprintf("%s cost=%s clock=%s changes=%d trips=%s", js.State, js.Cost, js.Clock, js.Changes(), js.Trips)
}

// SearchStateKey identifies a partial journey for cost dominance. Branches
// with different trip context or change counts at the same node are kept apart.
type SearchStateKey struct {
	Node    graph.NodeID
	Kind    Kind
	Phase   Phase
	Trips   string
	Changes int
}

// KeyOf derives the key of a branch standing at node.
func KeyOf(node graph.NodeID, js *JourneyState) SearchStateKey {
	k := SearchStateKey{Node: node, Kind: js.State.Kind, Phase: js.State.Phase, Changes: js.Changes()}
	if js.State.Kind == Boarded {
		k.Trips = js.Trips.Key()
	}
	return k
}

// WithChanges returns k with a different change count.
func (k SearchStateKey) WithChanges(n int) SearchStateKey {
	k.Changes = n
	return k
}

func (k SearchStateKey) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s", k.Node, k.Kind)
	if k.Phase != NoPhase {
		fmt.Fprintf(&b, "(%s)", k.Phase)
	}
	if k.Trips != "" {
		fmt.Fprintf(&b, "[%s]", k.Trips)
	}
	fmt.Fprintf(&b, "#%d", k.Changes)
	return b.String()
}
