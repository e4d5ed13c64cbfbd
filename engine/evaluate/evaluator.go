// Package evaluate decides whether a candidate branch of a journey search is
// kept, accepted as a journey, or discarded.
package evaluate

import (
	"fmt"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/traverse"
)

// Decision is the outcome of evaluating a branch.
type Decision int

const (
	// IncludeAndContinue keeps the branch for further expansion.
	IncludeAndContinue Decision = iota
	// IncludeAndPrune accepts the branch as a journey and stops expanding it.
	IncludeAndPrune
	// ExcludeAndPrune discards the branch.
	ExcludeAndPrune
)

func (d Decision) String() string {
	switch d {
	case IncludeAndContinue:
		return "INCLUDE_AND_CONTINUE"
	case IncludeAndPrune:
		return "INCLUDE_AND_PRUNE"
	case ExcludeAndPrune:
		return "EXCLUDE_AND_PRUNE"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Branch is a candidate partial journey: the path to its end node, the
// state after the last step and the key derived from both.
type Branch struct {
	Path  *graph.Path
	State *traverse.JourneyState
	Key   traverse.SearchStateKey
}

// Evaluator applies the request constraints to branches of one search.
type Evaluator struct {
	req    journey.PathRequest
	costs  CostOracle
	visits *PreviousVisits
	lowest *LowestCostSeen
	diag   *Diagnostics
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithDiagnostics sets the collector exclusions are recorded into.
func WithDiagnostics(d *Diagnostics) Option { return func(e *Evaluator) { e.diag = d } }

// WithPreviousVisits shares a PreviousVisits tracker.
func WithPreviousVisits(v *PreviousVisits) Option { return func(e *Evaluator) { e.visits = v } }

// WithLowestCostSeen shares a LowestCostSeen tracker.
func WithLowestCostSeen(l *LowestCostSeen) Option { return func(e *Evaluator) { e.lowest = l } }

// New creates an Evaluator for req consulting costs for dominance.
func New(req journey.PathRequest, costs CostOracle, opts ...Option) *Evaluator {
	e := &Evaluator{req: req, costs: costs}
	for _, o := range opts {
		o(e)
	}
	if e.diag == nil {
		e.diag = NewDiagnostics(DefaultSampleLimit)
	}
	if e.visits == nil {
		e.visits = NewPreviousVisits()
	}
	if e.lowest == nil {
		e.lowest = NewLowestCostSeen(req.MaxJourneys)
	}
	return e
}

// Diagnostics returns the collector in use.
func (e *Evaluator) Diagnostics() *Diagnostics { return e.diag }

// Lowest returns the LowestCostSeen tracker in use.
func (e *Evaluator) Lowest() *LowestCostSeen { return e.lowest }

// Evaluate applies the checks cheapest first and stops at the first failure.
// Errors are structural problems with the graph.
func (e *Evaluator) Evaluate(b Branch) (Decision, error) {
	rel := b.Path.Last()
	if rel == nil {
		return IncludeAndContinue, nil
	}
	js := b.State

	if reason, ok := e.visits.Lookup(rel.ID()); ok {
		return e.exclude(ReasonPreviouslyExcluded, "%s (%s)", rel.ID(), reason), nil
	}

	// calendar
	switch rel.Type() {
	case graph.ToService:
		if !js.Last.Running {
			e.visits.Record(rel.ID(), ReasonNotRunning)
			return e.exclude(ReasonNotRunning, "%s on %s", rel.ID(), e.req.Date), nil
		}
	case graph.Diversion:
		ok, err := rel.ValidOn(e.req.Date)
		if err != nil {
			return ExcludeAndPrune, err
		}
		if !ok {
			e.visits.Record(rel.ID(), ReasonDiversionInactive)
			return e.exclude(ReasonDiversionInactive, "%s on %s", rel.ID(), e.req.Date), nil
		}
	}

	// mode
	switch rel.Type() {
	case graph.Board, graph.InterchangeBoard, graph.ToService:
		if !e.req.Modes.Allows(js.Mode) {
			e.visits.Record(rel.ID(), ReasonMode)
			return e.exclude(ReasonMode, "%s is %s", rel.ID(), js.Mode), nil
		}
	}

	// time window
	switch rel.Type() {
	case graph.ToService:
		if !js.Last.Resolved {
			return e.exclude(ReasonMissedDeparture, "%s after %s", rel.ID(), clockString(js.Clock)), nil
		}
		if js.Last.Boarding && js.Boardings == 1 && js.Last.Wait > e.req.MaxInitialWait {
			return e.exclude(ReasonInitialWait, "%s waits %s", rel.ID(), js.Last.Wait), nil
		}
	case graph.ToHour:
		hour, err := b.Path.End().Hour()
		if err != nil {
			return ExcludeAndPrune, err
		}
		if !e.hourInWindow(hour, js) {
			return e.exclude(ReasonHourWindow, "hour %02d at %s", hour, clockString(js.Clock)), nil
		}
	}
	if elapsed := js.Clock - e.req.Time; elapsed > e.req.MaxDuration || js.Cost > e.req.MaxDuration {
		return e.exclude(ReasonTooLong, "%s at %s", b.Key, elapsed), nil
	}

	// trip continuity
	if rel.Type() == graph.ToService && js.Trips.Empty() {
		return e.exclude(ReasonTripChanged, "%s", rel.ID()), nil
	}

	// changes
	if js.Changes() > e.req.MaxChanges {
		return e.exclude(ReasonTooManyChanges, "%s with %d", b.Key, js.Changes()), nil
	}

	// cost
	finished := js.State.Kind == traverse.Finished
	if !finished && e.costs != nil {
		if at := (Arrival{Cost: js.Cost, Clock: js.Clock}); e.costs.Dominated(b.Key, at) {
			return e.exclude(ReasonDominated, "%s at %s", b.Key, at), nil
		}
	}
	if e.lowest.CannotImprove(js.Cost) {
		return e.exclude(ReasonCannotImprove, "%s at %s", b.Key, js.Cost), nil
	}

	if finished {
		return IncludeAndPrune, nil
	}
	return IncludeAndContinue, nil
}

func (e *Evaluator) exclude(reason Reason, format string, args ...any) Decision {
	e.diag.Record(reason, fmt.Sprintf(format, args...))
	return ExcludeAndPrune
}

// hourInWindow reports whether the hour bucket overlaps the departures still
// reachable: the initial wait for a first boarding, the rest of the journey
// otherwise.
func (e *Evaluator) hourInWindow(hour int, js *traverse.JourneyState) bool {
	start := js.Clock
	end := e.req.Deadline()
	if js.Boardings <= 1 {
		if w := js.Clock + e.req.MaxInitialWait; w < end {
			end = w
		}
	}
	for _, k := range []time.Duration{0, 24 * time.Hour} {
		bucket := k + time.Duration(hour)*time.Hour
		if bucket <= end && bucket+time.Hour > start {
			return true
		}
	}
	return false
}

func clockString(d time.Duration) string {
	d = d.Round(time.Minute)
	s := fmt.Sprintf("%02d:%02d", int(d/time.Hour)%24, int(d/time.Minute)%60)
	if d >= 24*time.Hour {
		s += "+1"
	}
	return s
}
