package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/graph/graphtest"
	"github.com/WessleyAI/journeyplanner/engine/planner"
)

var monday = graph.NewDate(2026, 3, 2)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	b := graphtest.New()
	b.Station("alt", graph.Tram)
	b.Station("bury", graph.Tram)
	b.RouteStation("alt-r1", "alt", "r1", graph.Tram)
	b.RouteStation("bury-r1", "bury", "r1", graph.Tram)
	b.Link("alt", "alt-r1", graph.Board, 30*time.Second)
	b.ToService("alt-r1", "bury-r1", graphtest.ValidOnly(monday, "08:10", 20*time.Minute, "t1"))
	b.Link("bury-r1", "bury", graph.Depart, 30*time.Second)
	data, err := json.Marshal(b.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newCLI(&out, &errOut).root()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", writeSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "4 nodes, 3 relationships") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestStats(t *testing.T) {
	out, err := execute(t, "stats", "--snapshot", writeSnapshot(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"4 nodes, 3 relationships", ":STATION", "-[:TO_SERVICE]- 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanInProcess(t *testing.T) {
	out, err := execute(t, "plan", "--snapshot", writeSnapshot(t),
		"--from", "alt", "--to", "bury", "--date", "2026-03-02", "--time", "08:00")
	if err != nil {
		t.Fatal(err)
	}
	var resp planner.PlanResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(resp.Journeys) != 1 || resp.Journeys[0].Depart != "08:10" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPlanReportsPlannerError(t *testing.T) {
	_, err := execute(t, "plan", "--snapshot", writeSnapshot(t),
		"--from", "alt", "--to", "nowhere", "--date", "2026-03-02", "--time", "08:00")
	if err == nil || !strings.Contains(err.Error(), planner.CodeInvalidRequest) {
		t.Fatalf("expected invalid_request error, got %v", err)
	}
}

func TestReach(t *testing.T) {
	snap := writeSnapshot(t)
	out, err := execute(t, "reach", "--snapshot", snap, "--date", "2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1 reachable, 1 unreachable, 0 failed") {
		t.Fatalf("unexpected summary %q", out)
	}

	if _, err := execute(t, "reach", "--snapshot", snap, "--date", "2026-03-02", "--strict"); err == nil {
		t.Fatal("expected --strict to fail on bury->alt")
	}
	if _, err := execute(t, "reach", "--snapshot", snap, "--date", "2026-03-02", "--strict", "alt:bury"); err != nil {
		t.Fatalf("alt:bury should be reachable: %v", err)
	}
}

func TestParsePairs(t *testing.T) {
	pairs, err := parsePairs([]string{"a:b", "c:d"})
	if err != nil || len(pairs) != 2 || pairs[1].To != "d" {
		t.Fatalf("got %v, %v", pairs, err)
	}
	for _, bad := range []string{"ab", ":b", "a:"} {
		if _, err := parsePairs([]string{bad}); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
