// Package journey holds the request and value types shared by the traversal,
// evaluation and search packages.
package journey

import (
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// ErrInvalidRequest marks a PathRequest that cannot be searched.
var ErrInvalidRequest = errors.New("invalid path request")

// RequestError names the offending PathRequest field.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidRequest, e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// ExpansionPolicy selects how the search orders its frontier.
type ExpansionPolicy int

const (
	// CostPriority expands the cheapest partial journey first.
	CostPriority ExpansionPolicy = iota
	// DepthFirst follows the cheapest successor of the most recent branch.
	DepthFirst
)

func (p ExpansionPolicy) String() string {
	switch p {
	case CostPriority:
		return "cost-priority"
	case DepthFirst:
		return "depth-first"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseExpansionPolicy accepts the names produced by String.
func ParseExpansionPolicy(s string) (ExpansionPolicy, error) {
	switch s {
	case "", "cost-priority", "cost":
		return CostPriority, nil
	case "depth-first", "dfs":
		return DepthFirst, nil
	}
	return 0, &RequestError{Field: "expansion", Reason: fmt.Sprintf("unknown policy %q", s)}
}

// StopPolicy decides when a search ends.
type StopPolicy int

const (
	// StopAtLimit ends the search once MaxJourneys distinct journeys are found.
	StopAtLimit StopPolicy = iota
	// Exhaust runs until the frontier is empty and keeps the MaxJourneys cheapest.
	Exhaust
)

func (p StopPolicy) String() string {
	if p == Exhaust {
		return "exhaust"
	}
	return "stop-at-limit"
}

// ParseStopPolicy accepts the names produced by String.
func ParseStopPolicy(s string) (StopPolicy, error) {
	switch s {
	case "", "stop-at-limit", "limit":
		return StopAtLimit, nil
	case "exhaust":
		return Exhaust, nil
	}
	return 0, &RequestError{Field: "stop", Reason: fmt.Sprintf("unknown policy %q", s)}
}

const day = 24 * time.Hour

// PathRequest describes one journey search.
type PathRequest struct {
	Start        graph.NodeID
	Destinations DestinationSet
	Date         graph.Date
	// Time is the earliest departure, as an offset from midnight of Date.
	Time           time.Duration
	MaxJourneys    int
	MaxChanges     int
	MaxInitialWait time.Duration
	// Modes restricts the transport modes used. Empty allows every mode.
	Modes       ModeSet
	MaxDuration time.Duration
	Expansion   ExpansionPolicy
	Stop        StopPolicy
}

// Validate reports the first invalid field.
func (r PathRequest) Validate() error {
	switch {
	case r.Start == "":
		return &RequestError{Field: "start", Reason: "missing"}
	case len(r.Destinations) == 0:
		return &RequestError{Field: "destinations", Reason: "empty"}
	case r.Destinations.Contains(r.Start):
		return &RequestError{Field: "destinations", Reason: "start is a destination"}
	case r.Date.IsZero():
		return &RequestError{Field: "date", Reason: "missing"}
	case r.Time < 0 || r.Time >= day:
		return &RequestError{Field: "time", Reason: fmt.Sprintf("%s outside the day", r.Time)}
	case r.MaxJourneys < 1:
		return &RequestError{Field: "max_journeys", Reason: "must be at least 1"}
	case r.MaxChanges < 0:
		return &RequestError{Field: "max_changes", Reason: "negative"}
	case r.MaxInitialWait < 0:
		return &RequestError{Field: "max_initial_wait", Reason: "negative"}
	case r.MaxDuration <= 0:
		return &RequestError{Field: "max_duration", Reason: "must be positive"}
	case r.MaxDuration > graph.MaxCost:
		return &RequestError{Field: "max_duration", Reason: fmt.Sprintf("above %s", graph.MaxCost)}
	case r.Expansion != CostPriority && r.Expansion != DepthFirst:
		return &RequestError{Field: "expansion", Reason: r.Expansion.String()}
	case r.Stop != StopAtLimit && r.Stop != Exhaust:
		return &RequestError{Field: "stop", Reason: "unknown"}
	}
	for m := range r.Modes {
		if !m.Known() {
			return &RequestError{Field: "modes", Reason: fmt.Sprintf("unknown mode %q", m)}
		}
	}
	return nil
}

// Deadline is the latest arrival, as an offset from midnight of Date. It may
// exceed 24h.
func (r PathRequest) Deadline() time.Duration { return r.Time + r.MaxDuration }

// CrossesMidnight reports whether the request window extends into the next day.
func (r PathRequest) CrossesMidnight() bool { return r.Deadline() > day }
