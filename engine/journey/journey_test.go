package journey

import (
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

func validRequest() PathRequest {
	return PathRequest{
		Start:          "a",
		Destinations:   NewDestinationSet("z"),
		Date:           graph.NewDate(2026, 3, 2),
		Time:           8 * time.Hour,
		MaxJourneys:    3,
		MaxChanges:     2,
		MaxInitialWait: 20 * time.Minute,
		MaxDuration:    2 * time.Hour,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*PathRequest)
		field string
	}{
		{"valid", func(*PathRequest) {}, ""},
		{"no start", func(r *PathRequest) { r.Start = "" }, "start"},
		{"no destinations", func(r *PathRequest) { r.Destinations = nil }, "destinations"},
		{"start is destination", func(r *PathRequest) { r.Destinations = NewDestinationSet("a") }, "destinations"},
		{"no date", func(r *PathRequest) { r.Date = graph.Date{} }, "date"},
		{"time past midnight", func(r *PathRequest) { r.Time = 24 * time.Hour }, "time"},
		{"zero journeys", func(r *PathRequest) { r.MaxJourneys = 0 }, "max_journeys"},
		{"negative changes", func(r *PathRequest) { r.MaxChanges = -1 }, "max_changes"},
		{"negative wait", func(r *PathRequest) { r.MaxInitialWait = -time.Minute }, "max_initial_wait"},
		{"zero duration", func(r *PathRequest) { r.MaxDuration = 0 }, "max_duration"},
		{"huge duration", func(r *PathRequest) { r.MaxDuration = 72 * time.Hour }, "max_duration"},
		{"unknown mode", func(r *PathRequest) { r.Modes = NewModeSet("hovercraft") }, "modes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.edit(&r)
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var re *RequestError
			if !errors.As(err, &re) || re.Field != tt.field {
				t.Fatalf("expected error on %s, got %v", tt.field, err)
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatal("error does not wrap ErrInvalidRequest")
			}
		})
	}
}

func TestCrossesMidnight(t *testing.T) {
	r := validRequest()
	if r.CrossesMidnight() {
		t.Fatal("08:00 + 2h should not cross midnight")
	}
	r.Time = 23 * time.Hour
	if !r.CrossesMidnight() || r.Deadline() != 25*time.Hour {
		t.Fatalf("23:00 + 2h: crosses=%v deadline=%s", r.CrossesMidnight(), r.Deadline())
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseExpansionPolicy("depth-first"); err != nil || p != DepthFirst {
		t.Fatalf("depth-first = %v, %v", p, err)
	}
	if p, err := ParseExpansionPolicy(""); err != nil || p != CostPriority {
		t.Fatalf("default = %v, %v", p, err)
	}
	if _, err := ParseExpansionPolicy("random"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if p, err := ParseStopPolicy("exhaust"); err != nil || p != Exhaust {
		t.Fatalf("exhaust = %v, %v", p, err)
	}
}

func TestModeSet(t *testing.T) {
	var all ModeSet
	if !all.Allows(graph.Bus) {
		t.Fatal("empty set should allow every mode")
	}
	trams := NewModeSet(graph.Tram)
	if trams.Allows(graph.Bus) || !trams.Allows(graph.Tram) {
		t.Fatal("tram-only set")
	}
}

func TestTripSet(t *testing.T) {
	a := NewTripSet("t3", "t1", "t2", "t1")
	if a.Len() != 3 || a.Key() != "t1,t2,t3" {
		t.Fatalf("unexpected set %s", a)
	}
	if !a.Contains("t2") || a.Contains("t9") {
		t.Fatal("Contains")
	}
	b := NewTripSet("t2", "t3", "t4")
	got := a.Intersect(b)
	if got.Key() != "t2,t3" {
		t.Fatalf("Intersect = %s", got)
	}
	if !a.Intersect(NewTripSet("x")).Empty() {
		t.Fatal("disjoint intersection should be empty")
	}
	ids := a.IDs()
	ids[0] = "mutated"
	if a.Contains("mutated") {
		t.Fatal("IDs exposed internal slice")
	}
}

func TestLimitsRequest(t *testing.T) {
	req := DefaultLimits().Request("a", []graph.NodeID{"y", "z"}, graph.NewDate(2026, 3, 2), 8*time.Hour)
	if err := req.Validate(); err != nil {
		t.Fatalf("default limits should give a valid request: %v", err)
	}
	if !req.Destinations.Contains("y") || !req.Destinations.Contains("z") {
		t.Fatalf("unexpected destinations %v", req.Destinations)
	}
	if req.Expansion != CostPriority || req.Stop != StopAtLimit {
		t.Fatalf("unexpected policies %s %s", req.Expansion, req.Stop)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"08:15", 8*time.Hour + 15*time.Minute, false},
		{"00:00", 0, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"24:00", 0, true},
		{"8am", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error %v", tt.in, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}
