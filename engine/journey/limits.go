package journey

import (
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// Limits are the request bounds a caller applies when the query itself names
// only endpoints and a departure time.
type Limits struct {
	MaxJourneys    int
	MaxChanges     int
	MaxInitialWait time.Duration
	MaxDuration    time.Duration
	Expansion      ExpansionPolicy
	Stop           StopPolicy
}

// DefaultLimits returns the limits used by the planner service.
func DefaultLimits() Limits {
	return Limits{
		MaxJourneys:    3,
		MaxChanges:     3,
		MaxInitialWait: 30 * time.Minute,
		MaxDuration:    3 * time.Hour,
		Expansion:      CostPriority,
		Stop:           StopAtLimit,
	}
}

// Request builds a PathRequest from start to dests departing at clock on date.
func (l Limits) Request(start graph.NodeID, dests []graph.NodeID, date graph.Date, clock time.Duration) PathRequest {
	return PathRequest{
		Start:          start,
		Destinations:   NewDestinationSet(dests...),
		Date:           date,
		Time:           clock,
		MaxJourneys:    l.MaxJourneys,
		MaxChanges:     l.MaxChanges,
		MaxInitialWait: l.MaxInitialWait,
		MaxDuration:    l.MaxDuration,
		Expansion:      l.Expansion,
		Stop:           l.Stop,
	}
}

// ParseClock parses a "15:04" time of day into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, &RequestError{Field: "time", Reason: err.Error()}
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
