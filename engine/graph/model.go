// Package graph defines the storage-independent model of the transit graph the
// journey search runs over: labeled nodes, typed relationships, and the
// transactions that resolve them. Two backing stores implement it, an
// in-memory one (memgraph) and a Neo4j one (neograph).
package graph

import (
	"context"
	"sort"
	"strings"
	"time"
)

// NodeID identifies a node within a transaction's view of the graph.
type NodeID string

// RelationshipID identifies a relationship within a transaction's view of the graph.
type RelationshipID string

// TripID identifies a single scheduled vehicle trip.
type TripID string

// Label classifies a node.
type Label string

const (
	LabelStation      Label = "STATION"
	LabelPlatform     Label = "PLATFORM"
	LabelRouteStation Label = "ROUTE_STATION"
	LabelHour         Label = "HOUR"
	LabelInterchange  Label = "INTERCHANGE"

	LabelTram   Label = "TRAM"
	LabelBus    Label = "BUS"
	LabelTrain  Label = "TRAIN"
	LabelFerry  Label = "FERRY"
	LabelSubway Label = "SUBWAY"
)

// LabelSet is the set of labels attached to a node.
type LabelSet map[Label]struct{}

// NewLabelSet builds a LabelSet from the given labels.
func NewLabelSet(labels ...Label) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Has reports whether l is in the set.
func (s LabelSet) Has(l Label) bool {
	_, ok := s[l]
	return ok
}

// Slice returns the labels in sorted order.
func (s LabelSet) Slice() []Label {
	out := make([]Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s LabelSet) String() string {
	parts := make([]string, 0, len(s))
	for _, l := range s.Slice() {
		parts = append(parts, string(l))
	}
	return strings.Join(parts, ":")
}

// RelType is the type of a relationship.
type RelType string

const (
	Board             RelType = "BOARD"
	InterchangeBoard  RelType = "INTERCHANGE_BOARD"
	Depart            RelType = "DEPART"
	InterchangeDepart RelType = "INTERCHANGE_DEPART"
	ToHour            RelType = "TO_HOUR"
	ToService         RelType = "TO_SERVICE"
	EnterPlatform     RelType = "ENTER_PLATFORM"
	LeavePlatform     RelType = "LEAVE_PLATFORM"
	Walk              RelType = "WALK"
	Linked            RelType = "LINKED"
	Diversion         RelType = "DIVERSION"
)

// RelTypes lists every relationship type the model knows about.
var RelTypes = []RelType{
	Board, InterchangeBoard, Depart, InterchangeDepart, ToHour, ToService,
	EnterPlatform, LeavePlatform, Walk, Linked, Diversion,
}

// IsBoarding reports whether t boards a vehicle.
func (t RelType) IsBoarding() bool { return t == Board || t == InterchangeBoard }

// IsDeparting reports whether t alights from a vehicle.
func (t RelType) IsDeparting() bool { return t == Depart || t == InterchangeDepart }

// Direction selects which relationships of a node to follow.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return "both"
	}
}

// TransportMode is the kind of vehicle serving a route.
type TransportMode string

const (
	Tram   TransportMode = "tram"
	Bus    TransportMode = "bus"
	Train  TransportMode = "train"
	Ferry  TransportMode = "ferry"
	Subway TransportMode = "subway"
)

// Modes lists every known transport mode.
var Modes = []TransportMode{Tram, Bus, Train, Ferry, Subway}

// Known reports whether m is one of Modes.
func (m TransportMode) Known() bool {
	for _, k := range Modes {
		if m == k {
			return true
		}
	}
	return false
}

// ModeLabel returns the node label used for stations served by mode m.
func ModeLabel(m TransportMode) Label {
	return Label(strings.ToUpper(string(m)))
}

// LatLong is a WGS84 position.
type LatLong struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Node is a vertex of the transit graph. Nodes are immutable once built.
type Node interface {
	ID() NodeID
	Labels() LabelSet
	HasLabel(l Label) bool

	StationID() (string, error)
	PlatformID() (string, error)
	RouteID() (string, error)
	TransportMode() (TransportMode, error)
	Hour() (int, error)
	Position() (LatLong, error)

	// Relationships returns the node's relationships in the given direction,
	// restricted to types when any are given.
	Relationships(ctx context.Context, tx Reader, dir Direction, types ...RelType) ([]Relationship, error)
}

// Relationship is a typed, directed edge of the transit graph.
type Relationship interface {
	ID() RelationshipID
	Type() RelType
	IsType(t RelType) bool

	// Cost is the time needed to traverse the relationship. Never negative.
	Cost() (time.Duration, error)
	Departure() (Departure, error)
	ServiceID() (string, error)
	TransportMode() (TransportMode, error)
	Calendar() (Calendar, error)
	DateRange() (DateRange, error)
	// ValidOn reports whether the relationship operates on date. Types that
	// carry no calendar are always valid.
	ValidOn(date Date) (bool, error)
	// TripIDs returns the trips an aggregated relationship represents. The
	// parsed list is memoised in the transaction's cache.
	TripIDs(tx Reader) ([]TripID, error)

	StartNodeID() NodeID
	EndNodeID() NodeID
	StartNode(ctx context.Context, tx Reader) (Node, error)
	EndNode(ctx context.Context, tx Reader) (Node, error)
	// OtherNodeID returns the endpoint opposite to id.
	OtherNodeID(id NodeID) NodeID
}
