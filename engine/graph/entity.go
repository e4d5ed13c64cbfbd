package graph

import (
	"context"
	"fmt"
	"time"
)

// PropertyNode is the Node implementation shared by the backing stores.
type PropertyNode struct {
	id     NodeID
	labels LabelSet
	props  Properties
}

// NewNode creates a node. props must already be normalised.
func NewNode(id NodeID, labels LabelSet, props Properties) *PropertyNode {
	return &PropertyNode{id: id, labels: labels, props: props}
}

func (n *PropertyNode) ID() NodeID             { return n.id }
func (n *PropertyNode) Labels() LabelSet       { return n.labels }
func (n *PropertyNode) HasLabel(l Label) bool  { return n.labels.Has(l) }
func (n *PropertyNode) Properties() Properties { return n.props.clone() }

func (n *PropertyNode) String() string { return fmt.Sprintf("(%s:%s)", n.id, n.labels) }

func (n *PropertyNode) entity() string { return fmt.Sprintf("node %s", n.id) }

// requireAny fails unless the node carries one of labels.
func (n *PropertyNode) requireAny(key string, labels ...Label) error {
	for _, l := range labels {
		if n.labels.Has(l) {
			return nil
		}
	}
	return NewStructuralError(n.entity(), key, fmt.Sprintf("not defined for labels %s", n.labels))
}

func (n *PropertyNode) StationID() (string, error) {
	if err := n.requireAny(PropStationID, LabelStation, LabelPlatform, LabelRouteStation); err != nil {
		return "", err
	}
	return n.props.str(n.entity(), PropStationID)
}

func (n *PropertyNode) PlatformID() (string, error) {
	if err := n.requireAny(PropPlatformID, LabelPlatform); err != nil {
		return "", err
	}
	return n.props.str(n.entity(), PropPlatformID)
}

func (n *PropertyNode) RouteID() (string, error) {
	if err := n.requireAny(PropRouteID, LabelRouteStation, LabelHour); err != nil {
		return "", err
	}
	return n.props.str(n.entity(), PropRouteID)
}

func (n *PropertyNode) TransportMode() (TransportMode, error) {
	if err := n.requireAny(PropMode, LabelRouteStation); err != nil {
		return "", err
	}
	s, err := n.props.str(n.entity(), PropMode)
	return TransportMode(s), err
}

func (n *PropertyNode) Hour() (int, error) {
	if err := n.requireAny(PropHour, LabelHour); err != nil {
		return 0, err
	}
	h, err := n.props.int(n.entity(), PropHour)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 {
		return 0, NewStructuralError(n.entity(), PropHour, fmt.Sprintf("hour %d out of range", h))
	}
	return int(h), nil
}

func (n *PropertyNode) Position() (LatLong, error) {
	if err := n.requireAny(PropLat, LabelStation, LabelPlatform); err != nil {
		return LatLong{}, err
	}
	lat, err := n.props.float(n.entity(), PropLat)
	if err != nil {
		return LatLong{}, err
	}
	lon, err := n.props.float(n.entity(), PropLon)
	if err != nil {
		return LatLong{}, err
	}
	return LatLong{Lat: lat, Lon: lon}, nil
}

func (n *PropertyNode) Relationships(ctx context.Context, tx Reader, dir Direction, types ...RelType) ([]Relationship, error) {
	return tx.Relationships(ctx, n.id, dir, types...)
}

// PropertyRelationship is the Relationship implementation shared by the backing stores.
type PropertyRelationship struct {
	id    RelationshipID
	typ   RelType
	start NodeID
	end   NodeID
	props Properties
}

// NewRelationship creates a relationship. props must already be normalised.
func NewRelationship(id RelationshipID, typ RelType, start, end NodeID, props Properties) *PropertyRelationship {
	return &PropertyRelationship{id: id, typ: typ, start: start, end: end, props: props}
}

func (r *PropertyRelationship) ID() RelationshipID     { return r.id }
func (r *PropertyRelationship) Type() RelType          { return r.typ }
func (r *PropertyRelationship) IsType(t RelType) bool  { return r.typ == t }
func (r *PropertyRelationship) StartNodeID() NodeID    { return r.start }
func (r *PropertyRelationship) EndNodeID() NodeID      { return r.end }
func (r *PropertyRelationship) Properties() Properties { return r.props.clone() }

// WithProperty returns a copy of r with key set to value.
func (r *PropertyRelationship) WithProperty(key string, value any) *PropertyRelationship {
	props := r.props.clone()
	props[key] = value
	return &PropertyRelationship{id: r.id, typ: r.typ, start: r.start, end: r.end, props: props}
}

func (r *PropertyRelationship) OtherNodeID(id NodeID) NodeID {
	if id == r.start {
		return r.end
	}
	return r.start
}

func (r *PropertyRelationship) String() string {
	return fmt.Sprintf("(%s)-[%s:%s]->(%s)", r.start, r.id, r.typ, r.end)
}

func (r *PropertyRelationship) entity() string { return fmt.Sprintf("relationship %s:%s", r.id, r.typ) }

func (r *PropertyRelationship) requireType(key string, types ...RelType) error {
	for _, t := range types {
		if r.typ == t {
			return nil
		}
	}
	return NewStructuralError(r.entity(), key, "not defined for this relationship type")
}

func (r *PropertyRelationship) Cost() (time.Duration, error) {
	secs, err := r.props.int(r.entity(), PropCost)
	if err != nil {
		return 0, err
	}
	d := time.Duration(secs) * time.Second
	if err := CheckCost(r.entity(), d); err != nil {
		return 0, err
	}
	return d, nil
}

func (r *PropertyRelationship) Departure() (Departure, error) {
	if err := r.requireType(PropDepTime, ToService); err != nil {
		return Departure{}, err
	}
	mins, err := r.props.int(r.entity(), PropDepTime)
	if err != nil {
		return Departure{}, err
	}
	offset, err := r.props.int(r.entity(), PropDayOffset)
	if err != nil {
		return Departure{}, err
	}
	if mins < 0 || mins >= 24*60 || offset < 0 || offset > 1 {
		return Departure{}, NewStructuralError(r.entity(), PropDepTime, fmt.Sprintf("departure %d+%d out of range", mins, offset))
	}
	return Departure{Minutes: int(mins), DayOffset: int(offset)}, nil
}

func (r *PropertyRelationship) ServiceID() (string, error) {
	if err := r.requireType(PropServiceID, ToService); err != nil {
		return "", err
	}
	return r.props.str(r.entity(), PropServiceID)
}

func (r *PropertyRelationship) TransportMode() (TransportMode, error) {
	if err := r.requireType(PropMode, ToService); err != nil {
		return "", err
	}
	s, err := r.props.str(r.entity(), PropMode)
	return TransportMode(s), err
}

func (r *PropertyRelationship) DateRange() (DateRange, error) {
	if err := r.requireType(PropStartDate, ToService, Diversion); err != nil {
		return DateRange{}, err
	}
	start, err := r.props.date(r.entity(), PropStartDate)
	if err != nil {
		return DateRange{}, err
	}
	end, err := r.props.date(r.entity(), PropEndDate)
	if err != nil {
		return DateRange{}, err
	}
	if end.Before(start) {
		return DateRange{}, NewStructuralError(r.entity(), PropEndDate, "end before start")
	}
	return DateRange{Start: start, End: end}, nil
}

func (r *PropertyRelationship) Calendar() (Calendar, error) {
	if err := r.requireType(PropDays, ToService); err != nil {
		return Calendar{}, err
	}
	rng, err := r.DateRange()
	if err != nil {
		return Calendar{}, err
	}
	mask, err := r.props.str(r.entity(), PropDays)
	if err != nil {
		return Calendar{}, err
	}
	days, err := ParseDays(mask)
	if err != nil {
		return Calendar{}, &StructuralError{Entity: r.entity(), Property: PropDays, Reason: "bad mask", Wrapped: err}
	}
	added, err := r.props.dateList(r.entity(), PropAddedDates)
	if err != nil {
		return Calendar{}, err
	}
	removed, err := r.props.dateList(r.entity(), PropRemovedDates)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{Range: rng, Days: days, Added: added, Removed: removed}, nil
}

func (r *PropertyRelationship) ValidOn(date Date) (bool, error) {
	switch r.typ {
	case ToService:
		cal, err := r.Calendar()
		if err != nil {
			return false, err
		}
		return cal.OperatesOn(date), nil
	case Diversion:
		rng, err := r.DateRange()
		if err != nil {
			return false, err
		}
		return rng.Contains(date), nil
	default:
		return true, nil
	}
}

func (r *PropertyRelationship) TripIDs(tx Reader) ([]TripID, error) {
	if err := r.requireType(PropTripIDs, ToService); err != nil {
		return nil, err
	}
	return tx.Cache().TripIDs(r.id, func() ([]TripID, error) {
		raw, err := r.props.str(r.entity(), PropTripIDs)
		if err != nil {
			return nil, err
		}
		parts := splitList(raw)
		if len(parts) == 0 {
			return nil, NewStructuralError(r.entity(), PropTripIDs, "empty trip list")
		}
		ids := make([]TripID, len(parts))
		for i, p := range parts {
			ids[i] = TripID(p)
		}
		return ids, nil
	})
}

func (r *PropertyRelationship) StartNode(ctx context.Context, tx Reader) (Node, error) {
	return tx.GetNodeByID(ctx, r.start)
}

func (r *PropertyRelationship) EndNode(ctx context.Context, tx Reader) (Node, error) {
	return tx.GetNodeByID(ctx, r.end)
}

var (
	_ Node         = (*PropertyNode)(nil)
	_ Relationship = (*PropertyRelationship)(nil)
)
