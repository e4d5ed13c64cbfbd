package graph

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNormalizeProps(t *testing.T) {
	got, err := NormalizeProps(map[string]any{
		"a": 3,
		"b": int32(4),
		"c": float32(1.5),
		"d": json.Number("7"),
		"e": json.Number("2.25"),
		"f": "x",
		"g": true,
	})
	if err != nil {
		t.Fatalf("NormalizeProps: %v", err)
	}
	if got["a"] != int64(3) || got["b"] != int64(4) || got["d"] != int64(7) {
		t.Fatalf("integers not widened: %v", got)
	}
	if got["c"] != float64(1.5) || got["e"] != 2.25 {
		t.Fatalf("floats not widened: %v", got)
	}
	if _, err := NormalizeProps(map[string]any{"x": nil}); err == nil {
		t.Fatal("expected error for nil")
	}
	if _, err := NormalizeProps(map[string]any{"x": []int{1}}); err == nil {
		t.Fatal("expected error for slice")
	}
}

func TestNodeAccessorsCheckLabels(t *testing.T) {
	n := NewNode("n1", NewLabelSet(LabelHour), Properties{PropHour: int64(8), PropRouteID: "r1"})
	if h, err := n.Hour(); err != nil || h != 8 {
		t.Fatalf("Hour = %d, %v", h, err)
	}
	if _, err := n.StationID(); !errors.Is(err, ErrStructural) {
		t.Fatalf("StationID on HOUR: expected structural error, got %v", err)
	}
	if _, err := n.TransportMode(); !errors.Is(err, ErrStructural) {
		t.Fatalf("TransportMode on HOUR: expected structural error, got %v", err)
	}

	bad := NewNode("n2", NewLabelSet(LabelHour), Properties{PropHour: int64(24)})
	if _, err := bad.Hour(); !errors.Is(err, ErrStructural) {
		t.Fatalf("hour 24: expected structural error, got %v", err)
	}

	missing := NewNode("n3", NewLabelSet(LabelStation), Properties{})
	var se *StructuralError
	if _, err := missing.StationID(); !errors.As(err, &se) || se.Property != PropStationID {
		t.Fatalf("missing station id: got %v", err)
	}
}

func TestRelationshipCost(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
		want  time.Duration
		err   error
	}{
		{"ok", Properties{PropCost: int64(90)}, 90 * time.Second, nil},
		{"zero", Properties{PropCost: int64(0)}, 0, nil},
		{"negative", Properties{PropCost: int64(-1)}, 0, ErrInvalidDuration},
		{"too large", Properties{PropCost: int64(49 * 3600)}, 0, ErrInvalidDuration},
		{"missing", Properties{}, 0, ErrStructural},
		{"wrong type", Properties{PropCost: "ten"}, 0, ErrStructural},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRelationship("r1", Walk, "a", "b", tt.props)
			got, err := r.Cost()
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("Cost = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func serviceProps() Properties {
	return Properties{
		PropCost:      int64(600),
		PropServiceID: "svc",
		PropMode:      "tram",
		PropDepTime:   int64(8 * 60),
		PropDayOffset: int64(0),
		PropStartDate: "2026-03-01",
		PropEndDate:   "2026-03-31",
		PropDays:      "1111100",
		PropTripIDs:   "t1, t2",
	}
}

func TestServiceRelationship(t *testing.T) {
	r := NewRelationship("r1", ToService, "a", "b", serviceProps())
	dep, err := r.Departure()
	if err != nil || dep.Minutes != 480 {
		t.Fatalf("Departure = %v, %v", dep, err)
	}
	if ok, err := r.ValidOn(NewDate(2026, 3, 2)); err != nil || !ok {
		t.Fatalf("ValidOn monday = %v, %v", ok, err)
	}
	if ok, _ := r.ValidOn(NewDate(2026, 3, 8)); ok {
		t.Fatal("ValidOn sunday should be false")
	}
	mode, err := r.TransportMode()
	if err != nil || mode != Tram {
		t.Fatalf("TransportMode = %q, %v", mode, err)
	}

	walk := NewRelationship("r2", Walk, "a", "b", Properties{PropCost: int64(60)})
	if ok, err := walk.ValidOn(NewDate(2026, 3, 8)); err != nil || !ok {
		t.Fatalf("walk always valid, got %v %v", ok, err)
	}
	if _, err := walk.Departure(); !errors.Is(err, ErrStructural) {
		t.Fatalf("Departure on WALK: expected structural error, got %v", err)
	}
}

func TestDepartureRange(t *testing.T) {
	props := serviceProps()
	props[PropDayOffset] = int64(2)
	r := NewRelationship("r1", ToService, "a", "b", props)
	if _, err := r.Departure(); !errors.Is(err, ErrStructural) {
		t.Fatalf("day offset 2: expected structural error, got %v", err)
	}
}

type cacheOnly struct {
	Reader
	cache *TxCache
}

func (c cacheOnly) Cache() *TxCache { return c.cache }

func TestTripIDsMemoised(t *testing.T) {
	tx := cacheOnly{cache: NewTxCache()}
	r := NewRelationship("r1", ToService, "a", "b", serviceProps())
	ids, err := r.TripIDs(tx)
	if err != nil {
		t.Fatalf("TripIDs: %v", err)
	}
	if len(ids) != 2 || ids[1] != "t2" {
		t.Fatalf("unexpected ids %v", ids)
	}
	r.TripIDs(tx)
	if hits, misses := tx.cache.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d", hits, misses)
	}

	props := serviceProps()
	props[PropTripIDs] = " , "
	empty := NewRelationship("r2", ToService, "a", "b", props)
	if _, err := empty.TripIDs(tx); !errors.Is(err, ErrStructural) {
		t.Fatalf("empty trip list: expected structural error, got %v", err)
	}
	if tx.cache.Len() != 1 {
		t.Fatal("parse error was cached")
	}
}

func TestPathCostAccumulates(t *testing.T) {
	a := NewNode("a", NewLabelSet(LabelStation), Properties{PropStationID: "a"})
	b := NewNode("b", NewLabelSet(LabelStation), Properties{PropStationID: "b"})
	c := NewNode("c", NewLabelSet(LabelStation), Properties{PropStationID: "c"})
	ab := NewRelationship("ab", Walk, "a", "b", Properties{PropCost: int64(60)})
	bc := NewRelationship("bc", Walk, "b", "c", Properties{PropCost: int64(120)})

	p := NewPath(a)
	p1, err := p.Append(ab, b)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := p1.Append(bc, c)
	if err != nil {
		t.Fatal(err)
	}
	if p2.Cost() != 3*time.Minute || p2.Len() != 2 {
		t.Fatalf("cost=%v len=%d", p2.Cost(), p2.Len())
	}
	if p1.Cost() != time.Minute {
		t.Fatal("prefix path was modified")
	}
	if got := p2.Signature(); got != "a>ab,bc" {
		t.Fatalf("Signature = %q", got)
	}
	if p2.Start().ID() != "a" || p2.End().ID() != "c" {
		t.Fatal("wrong endpoints")
	}
	if _, err := p.Append(bc, c); !errors.Is(err, ErrStructural) {
		t.Fatalf("non-adjacent append: expected structural error, got %v", err)
	}
}

func TestSnapshotValidate(t *testing.T) {
	good := Snapshot{
		Nodes: []NodeSpec{
			{Key: "a", Labels: []Label{LabelStation}, Props: map[string]any{PropStationID: "a"}},
			{Key: "b", Labels: []Label{LabelStation}, Props: map[string]any{PropStationID: "b"}},
		},
		Relationships: []RelSpec{{From: "a", To: "b", Type: Walk, Props: map[string]any{PropCost: 30}}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := good
	bad.Relationships = []RelSpec{{From: "a", To: "zz", Type: Walk}}
	if err := bad.Validate(); !errors.Is(err, ErrStructural) {
		t.Fatalf("unknown endpoint: expected structural error, got %v", err)
	}
	dup := good
	dup.Nodes = append(dup.Nodes, NodeSpec{Key: "a", Labels: []Label{LabelStation}})
	if err := dup.Validate(); !errors.Is(err, ErrStructural) {
		t.Fatalf("duplicate key: expected structural error, got %v", err)
	}
}

func TestParseSnapshot(t *testing.T) {
	raw := []byte(`{"nodes":[{"key":"a","labels":["STATION"],"props":{"station_id":"a","lat":53.1}}],"relationships":[]}`)
	s, err := ParseSnapshot(raw)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if _, ok := s.Nodes[0].Props[PropLat].(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", s.Nodes[0].Props[PropLat])
	}
}
