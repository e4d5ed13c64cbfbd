// Package graphtest builds small transit graph snapshots for tests.
package graphtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// Builder accumulates a graph.Snapshot.
type Builder struct {
	snap graph.Snapshot
	seq  int
}

// New creates an empty Builder.
func New() *Builder { return &Builder{} }

// Snapshot returns the built snapshot.
func (b *Builder) Snapshot() graph.Snapshot { return b.snap }

func (b *Builder) node(key string, props map[string]any, labels ...graph.Label) string {
	b.snap.Nodes = append(b.snap.Nodes, graph.NodeSpec{Key: key, Labels: labels, Props: props})
	return key
}

func (b *Builder) rel(from, to string, typ graph.RelType, props map[string]any) string {
	b.seq++
	key := fmt.Sprintf("%s-%s-%s-%d", from, typ, to, b.seq)
	b.snap.Relationships = append(b.snap.Relationships, graph.RelSpec{Key: key, From: from, To: to, Type: typ, Props: props})
	return key
}

// Station adds a station node; its key doubles as the station id.
func (b *Builder) Station(key string, mode graph.TransportMode) string {
	return b.node(key, map[string]any{
		graph.PropStationID: key,
		graph.PropName:      strings.ToUpper(key),
		graph.PropLat:       53.48,
		graph.PropLon:       -2.24,
	}, graph.LabelStation, graph.ModeLabel(mode))
}

// Platform adds a platform of station.
func (b *Builder) Platform(key, station string) string {
	return b.node(key, map[string]any{
		graph.PropStationID:  station,
		graph.PropPlatformID: key,
		graph.PropLat:        53.48,
		graph.PropLon:        -2.24,
	}, graph.LabelPlatform)
}

// RouteStation adds the node for route calling at station.
func (b *Builder) RouteStation(key, station, route string, mode graph.TransportMode) string {
	return b.node(key, map[string]any{
		graph.PropStationID: station,
		graph.PropRouteID:   route,
		graph.PropMode:      string(mode),
	}, graph.LabelRouteStation, graph.ModeLabel(mode))
}

// Hour adds an hour bucket for route.
func (b *Builder) Hour(key, route string, hour int) string {
	return b.node(key, map[string]any{
		graph.PropRouteID: route,
		graph.PropHour:    hour,
	}, graph.LabelHour)
}

// Link adds a relationship of typ with cost.
func (b *Builder) Link(from, to string, typ graph.RelType, cost time.Duration) string {
	return b.rel(from, to, typ, map[string]any{graph.PropCost: int64(cost / time.Second)})
}

// Service describes a TO_SERVICE relationship.
type Service struct {
	ServiceID string
	Mode      graph.TransportMode
	Depart    string // "15:04" style time of day
	DayOffset int
	Cost      time.Duration
	From, To  graph.Date
	Days      string
	Trips     []string
	Added     []graph.Date
	Removed   []graph.Date
}

// ValidOnly returns a Service running only on date.
func ValidOnly(date graph.Date, depart string, cost time.Duration, trips ...string) Service {
	return Service{
		ServiceID: "svc-" + date.String(),
		Mode:      graph.Tram,
		Depart:    depart,
		Cost:      cost,
		From:      date,
		To:        date,
		Days:      "1111111",
		Trips:     trips,
	}
}

// ToService adds a TO_SERVICE relationship.
func (b *Builder) ToService(from, to string, s Service) string {
	var h, m int
	if _, err := fmt.Sscanf(s.Depart, "%d:%d", &h, &m); err != nil {
		panic(fmt.Sprintf("graphtest: bad departure %q", s.Depart))
	}
	props := map[string]any{
		graph.PropCost:       int64(s.Cost / time.Second),
		graph.PropServiceID:  s.ServiceID,
		graph.PropMode:       string(s.Mode),
		graph.PropDepTime:    int64(h*60 + m),
		graph.PropDayOffset:  int64(s.DayOffset),
		graph.PropStartDate:  s.From.String(),
		graph.PropEndDate:    s.To.String(),
		graph.PropDays:       s.Days,
		graph.PropTripIDs:    strings.Join(s.Trips, ","),
	}
	if len(s.Added) > 0 {
		props[graph.PropAddedDates] = joinDates(s.Added)
	}
	if len(s.Removed) > 0 {
		props[graph.PropRemovedDates] = joinDates(s.Removed)
	}
	return b.rel(from, to, graph.ToService, props)
}

// Diversion adds a DIVERSION active between from and to dates.
func (b *Builder) Diversion(fromNode, toNode string, cost time.Duration, start, end graph.Date) string {
	return b.rel(fromNode, toNode, graph.Diversion, map[string]any{
		graph.PropCost:      int64(cost / time.Second),
		graph.PropStartDate: start.String(),
		graph.PropEndDate:   end.String(),
	})
}

func joinDates(ds []graph.Date) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}
