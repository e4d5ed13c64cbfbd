package journey

import (
	"sort"
	"strings"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// ModeSet is a set of transport modes. The empty set allows every mode.
type ModeSet map[graph.TransportMode]struct{}

// NewModeSet builds a ModeSet.
func NewModeSet(modes ...graph.TransportMode) ModeSet {
	s := make(ModeSet, len(modes))
	for _, m := range modes {
		s[m] = struct{}{}
	}
	return s
}

// Allows reports whether m may be used.
func (s ModeSet) Allows(m graph.TransportMode) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[m]
	return ok
}

// Slice returns the modes sorted by name.
func (s ModeSet) Slice() []graph.TransportMode {
	out := make([]graph.TransportMode, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DestinationSet is the set of node ids a journey may end at.
type DestinationSet map[graph.NodeID]struct{}

// NewDestinationSet builds a DestinationSet.
func NewDestinationSet(ids ...graph.NodeID) DestinationSet {
	s := make(DestinationSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is a destination.
func (s DestinationSet) Contains(id graph.NodeID) bool {
	_, ok := s[id]
	return ok
}

// TripSet is an immutable, sorted set of trip ids.
type TripSet struct {
	ids []graph.TripID
	key string
}

// NewTripSet builds a TripSet, dropping duplicates.
func NewTripSet(ids ...graph.TripID) TripSet {
	if len(ids) == 0 {
		return TripSet{}
	}
	sorted := make([]graph.TripID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return TripSet{ids: out, key: joinTrips(out)}
}

func joinTrips(ids []graph.TripID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

// Len returns the number of trips.
func (t TripSet) Len() int { return len(t.ids) }

// Empty reports whether the set holds no trips.
func (t TripSet) Empty() bool { return len(t.ids) == 0 }

// IDs returns a copy of the trip ids in sorted order.
func (t TripSet) IDs() []graph.TripID {
	out := make([]graph.TripID, len(t.ids))
	copy(out, t.ids)
	return out
}

// Contains reports membership.
func (t TripSet) Contains(id graph.TripID) bool {
	i := sort.Search(len(t.ids), func(i int) bool { return t.ids[i] >= id })
	return i < len(t.ids) && t.ids[i] == id
}

// Intersect returns the trips present in both sets.
func (t TripSet) Intersect(o TripSet) TripSet {
	var out []graph.TripID
	i, j := 0, 0
	for i < len(t.ids) && j < len(o.ids) {
		switch {
		case t.ids[i] == o.ids[j]:
			out = append(out, t.ids[i])
			i++
			j++
		case t.ids[i] < o.ids[j]:
			i++
		default:
			j++
		}
	}
	if len(out) == 0 {
		return TripSet{}
	}
	return TripSet{ids: out, key: joinTrips(out)}
}

// Key is a canonical string form, empty for the empty set.
func (t TripSet) Key() string { return t.key }

func (t TripSet) String() string { return "{" + t.key + "}" }
