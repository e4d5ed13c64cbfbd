package search

import (
	"context"
	"testing"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/graph/graphtest"
	"github.com/WessleyAI/journeyplanner/engine/graph/memgraph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/traverse"
)

// countingReader counts relationship lookups.
type countingReader struct {
	graph.Reader
	lookups int
}

func (r *countingReader) Relationships(ctx context.Context, id graph.NodeID, dir graph.Direction, types ...graph.RelType) ([]graph.Relationship, error) {
	r.lookups++
	return r.Reader.Relationships(ctx, id, dir, types...)
}

func TestExpandWithoutLegalTypes(t *testing.T) {
	b := graphtest.New()
	b.Station("a", graph.Tram)
	b.Station("z", graph.Tram)
	b.Link("a", "z", graph.Walk, time.Minute)
	ctx := context.Background()
	db, res, err := memgraph.FromSnapshot(ctx, b.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Close(ctx)
	r := &countingReader{Reader: tx}

	l := journey.DefaultLimits()
	s, err := New(r, l.Request(res.Nodes["a"], []graph.NodeID{res.Nodes["z"]}, graph.NewDate(2026, 3, 2), 8*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	a, err := tx.GetNodeByID(ctx, res.Nodes["a"])
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		state traverse.State
	}{
		{"finished", traverse.State{Kind: traverse.Finished}},
		{"boarded without phase", traverse.State{Kind: traverse.Boarded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &entry{path: graph.NewPath(a), state: &traverse.JourneyState{State: tt.state}}
			done, err := s.expand(ctx, e)
			if err != nil || done {
				t.Fatalf("expand = %v, %v", done, err)
			}
			if r.lookups != 0 || s.stats.Expanded != 0 {
				t.Fatalf("expected nothing followed, got %d lookups, %d expanded", r.lookups, s.stats.Expanded)
			}
		})
	}
}
