package traverse

import (
	"fmt"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
)

const day = 24 * time.Hour

// Step is one relationship taken from the end of a branch.
type Step struct {
	Rel     graph.Relationship
	Arrival graph.Node
	// Trips are the trips Rel represents; set for TO_SERVICE steps.
	Trips journey.TripSet
}

// Machine computes transitions for one request. It holds no per-branch state
// and is safe for concurrent use.
type Machine struct {
	date          graph.Date
	crossMidnight bool
	destinations  journey.DestinationSet
}

// NewMachine creates a Machine for req.
func NewMachine(req journey.PathRequest) *Machine {
	return &Machine{
		date:          req.Date,
		crossMidnight: req.CrossesMidnight(),
		destinations:  req.Destinations,
	}
}

// Start returns the state of a branch standing at start at the given clock.
func (m *Machine) Start(start graph.Node, clock time.Duration) (*JourneyState, error) {
	origin, err := originFor(start)
	if err != nil {
		return nil, err
	}
	return &JourneyState{State: State{Kind: NotStarted, Origin: origin}, Clock: clock}, nil
}

// Next applies step to js and returns the successor state. js is not modified.
func (m *Machine) Next(js *JourneyState, step Step) (*JourneyState, error) {
	typ := step.Rel.Type()
	if !js.State.Allows(typ) {
		return nil, &TransitionError{From: js.State, Rel: typ}
	}
	cost, err := step.Rel.Cost()
	if err != nil {
		return nil, err
	}
	next := js.Clone()
	next.Cost += cost
	next.Last = Departure{}

	switch typ {
	case graph.Board, graph.InterchangeBoard:
		mode, err := step.Arrival.TransportMode()
		if err != nil {
			return nil, err
		}
		next.Clock += cost
		next.Boardings++
		next.Mode = mode
		next.Trips = journey.TripSet{}
		next.State = State{Kind: Boarded, Phase: JustBoarded}

	case graph.ToHour:
		next.Clock += cost
		next.State = State{Kind: Boarded, Phase: AtHour}

	case graph.ToService:
		if err := m.ride(js, next, step, cost); err != nil {
			return nil, err
		}

	case graph.Depart, graph.InterchangeDepart:
		next.Clock += cost
		next.Trips = journey.TripSet{}
		next.State = m.arrive(step.Arrival, AtStation)

	case graph.EnterPlatform:
		next.Clock += cost
		next.State = m.arrive(step.Arrival, ChangingPlatform)

	case graph.LeavePlatform, graph.Linked:
		next.Clock += cost
		next.State = m.arrive(step.Arrival, AtStation)

	case graph.Walk:
		next.Clock += cost
		next.State = m.arrive(step.Arrival, Walking)

	case graph.Diversion:
		next.Clock += cost
		next.addDiversion(step.Rel.ID())
		next.State = m.arrive(step.Arrival, Diverted)

	default:
		return nil, &TransitionError{From: js.State, Rel: typ}
	}
	return next, nil
}

// arrive returns Finished when n is a destination, otherwise kind.
func (m *Machine) arrive(n graph.Node, kind Kind) State {
	if m.destinations.Contains(n.ID()) {
		return State{Kind: Finished}
	}
	return State{Kind: kind}
}

// ride applies a TO_SERVICE step. A departure that cannot be resolved leaves
// the clock untouched apart from the edge cost; the evaluator rejects it.
func (m *Machine) ride(prev, next *JourneyState, step Step, cost time.Duration) error {
	dep, err := step.Rel.Departure()
	if err != nil {
		return err
	}
	mode, err := step.Rel.TransportMode()
	if err != nil {
		return err
	}
	resolved, err := m.resolve(step.Rel, dep, prev.Clock)
	if err != nil {
		return err
	}
	resolved.Boarding = prev.State.Phase != OnTrip

	if resolved.Boarding {
		next.Trips = step.Trips
	} else {
		next.Trips = prev.Trips.Intersect(step.Trips)
	}
	next.Mode = mode
	next.Last = resolved
	next.State = State{Kind: Boarded, Phase: OnTrip}
	if !resolved.Resolved {
		next.Clock += cost
		return nil
	}
	next.Clock = resolved.At + cost
	if !next.Departed {
		next.Departed = true
		next.FirstDeparture = resolved.At
	}
	return nil
}

// resolve picks the earliest calendar-valid service date whose departure is
// not before clock. Candidates are the query date, the previous date for
// after-midnight departures, and the next date when the request window
// crosses midnight.
func (m *Machine) resolve(rel graph.Relationship, dep graph.Departure, clock time.Duration) (Departure, error) {
	offsets := []int{0}
	if dep.DayOffset > 0 {
		offsets = append(offsets, -1)
	}
	if m.crossMidnight {
		offsets = append(offsets, 1)
	}

	var best Departure
	for _, k := range offsets {
		date := m.date.AddDays(k)
		ok, err := rel.ValidOn(date)
		if err != nil {
			return Departure{}, fmt.Errorf("resolve departure %s: %w", rel.ID(), err)
		}
		if !ok {
			continue
		}
		best.Running = true
		at := time.Duration(k)*day + dep.Offset()
		if at < clock {
			continue
		}
		if !best.Resolved || at < best.At {
			best.Resolved = true
			best.Date = date
			best.At = at
			best.Wait = at - clock
		}
	}
	return best, nil
}
