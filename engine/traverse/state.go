// Package traverse is the traversal state machine. A State records what kind
// of step a journey branch last took and decides which relationship types it
// may follow next.
package traverse

import (
	"errors"
	"fmt"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// ErrIllegalTransition is returned when a branch follows a relationship its
// current state does not permit. It indicates a search defect.
var ErrIllegalTransition = errors.New("illegal traversal transition")

// TransitionError describes an illegal transition.
type TransitionError struct {
	From State
	Rel  graph.RelType
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s from %s", ErrIllegalTransition, e.Rel, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Kind is the coarse traversal state.
type Kind int

const (
	NotStarted Kind = iota
	AtStation
	ChangingPlatform
	Walking
	Diverted
	Boarded
	Finished
)

var kindNames = [...]string{"NotStarted", "AtStation", "ChangingPlatform", "Walking", "Diverted", "Boarded", "Finished"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Phase refines Boarded.
type Phase int

const (
	NoPhase Phase = iota
	// JustBoarded: at a route station, service not yet chosen.
	JustBoarded
	// AtHour: at an hour bucket of the route.
	AtHour
	// OnTrip: riding a service.
	OnTrip
)

func (p Phase) String() string {
	switch p {
	case JustBoarded:
		return "JustBoarded"
	case AtHour:
		return "AtHour"
	case OnTrip:
		return "OnTrip"
	default:
		return ""
	}
}

// State is a traversal state value. Origin is only meaningful for NotStarted
// and names the state whose legal set applies at the start node.
type State struct {
	Kind   Kind
	Phase  Phase
	Origin Kind
}

func (s State) String() string {
	switch {
	case s.Kind == Boarded:
		return "Boarded(" + s.Phase.String() + ")"
	case s.Kind == NotStarted:
		return "NotStarted(" + s.Origin.String() + ")"
	default:
		return s.Kind.String()
	}
}

var (
	atStationLegal = []graph.RelType{graph.Board, graph.InterchangeBoard, graph.EnterPlatform, graph.Walk, graph.Linked, graph.Diversion}
	platformLegal  = []graph.RelType{graph.Board, graph.InterchangeBoard, graph.LeavePlatform}
	walkingLegal   = []graph.RelType{graph.Board, graph.InterchangeBoard, graph.EnterPlatform, graph.Diversion}
	divertedLegal  = []graph.RelType{graph.Board, graph.InterchangeBoard, graph.EnterPlatform, graph.Walk, graph.Linked}
	boardedLegal   = []graph.RelType{graph.ToHour, graph.ToService}
	atHourLegal    = []graph.RelType{graph.ToService}
	onTripLegal    = []graph.RelType{graph.ToService, graph.Depart, graph.InterchangeDepart}
)

// Legal returns the relationship types that may be followed from s. The
// returned slice must not be modified.
func (s State) Legal() []graph.RelType {
	switch s.Kind {
	case NotStarted:
		return State{Kind: s.Origin}.Legal()
	case AtStation:
		return atStationLegal
	case ChangingPlatform:
		return platformLegal
	case Walking:
		return walkingLegal
	case Diverted:
		return divertedLegal
	case Boarded:
		switch s.Phase {
		case JustBoarded:
			return boardedLegal
		case AtHour:
			return atHourLegal
		case OnTrip:
			return onTripLegal
		}
	}
	return nil
}

// Allows reports whether t is in the legal set of s.
func (s State) Allows(t graph.RelType) bool {
	for _, l := range s.Legal() {
		if l == t {
			return true
		}
	}
	return false
}

// originFor picks the state whose legal set applies at a start node.
func originFor(n graph.Node) (Kind, error) {
	switch {
	case n.HasLabel(graph.LabelStation):
		return AtStation, nil
	case n.HasLabel(graph.LabelPlatform):
		return ChangingPlatform, nil
	}
	return 0, graph.NewStructuralError(fmt.Sprintf("node %s", n.ID()), "labels", fmt.Sprintf("cannot start a journey at %s", n.Labels()))
}
