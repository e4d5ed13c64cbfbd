package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/graph/graphtest"
	"github.com/WessleyAI/journeyplanner/engine/graph/memgraph"
	"github.com/WessleyAI/journeyplanner/pkg/metrics"
	"github.com/WessleyAI/journeyplanner/pkg/resilience"
)

var monday = graph.NewDate(2026, 3, 2)

// network runs one tram from alt to bury and has a walk from bury to cole.
func network(t *testing.T) *memgraph.Database {
	t.Helper()
	b := graphtest.New()
	b.Station("alt", graph.Tram)
	b.Station("bury", graph.Tram)
	b.Station("cole", graph.Bus)
	b.RouteStation("alt-r1", "alt", "r1", graph.Tram)
	b.RouteStation("bury-r1", "bury", "r1", graph.Tram)
	b.Link("alt", "alt-r1", graph.Board, 30*time.Second)
	b.ToService("alt-r1", "bury-r1", graphtest.ValidOnly(monday, "08:10", 20*time.Minute, "t1"))
	b.Link("bury-r1", "bury", graph.Depart, 30*time.Second)
	b.Link("bury", "cole", graph.Walk, 5*time.Minute)

	db, _, err := memgraph.FromSnapshot(context.Background(), b.Snapshot())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return db
}

func plan(from string, to ...string) PlanRequest {
	return PlanRequest{From: from, To: to, Date: "2026-03-02", Time: "08:00"}
}

func TestHandle(t *testing.T) {
	reg := metrics.New("journey")
	m := NewMetrics(reg)
	s := New(network(t), DefaultOptions(), m, nil)

	resp := s.Handle(context.Background(), plan("alt", "cole"))
	if resp.Error != nil {
		t.Fatalf("unexpected error %v", resp.Error)
	}
	if resp.RequestID == "" {
		t.Fatal("missing request id")
	}
	if len(resp.Journeys) != 1 {
		t.Fatalf("expected 1 journey, got %d", len(resp.Journeys))
	}
	j := resp.Journeys[0]
	if j.Depart != "08:10" || j.Arrive != "08:35" || j.Changes != 0 {
		t.Fatalf("unexpected journey %+v", j)
	}
	want := []Stage{
		{Kind: KindRide, Mode: "tram", Service: "svc-2026-03-02", From: "alt", To: "bury", Depart: "08:10", DurationSeconds: 1200},
		{Kind: KindWalk, From: "bury", To: "cole", DurationSeconds: 300},
	}
	if len(j.Stages) != len(want) {
		t.Fatalf("expected %d stages, got %+v", len(want), j.Stages)
	}
	for i := range want {
		if j.Stages[i] != want[i] {
			t.Fatalf("stage %d: expected %+v, got %+v", i, want[i], j.Stages[i])
		}
	}

	if got := testutil.ToFloat64(m.searches.WithLabelValues("cost-priority")); got != 1 {
		t.Fatalf("searches_total = %v", got)
	}
	if got := testutil.ToFloat64(m.plans.WithLabelValues("ok")); got != 1 {
		t.Fatalf("plans_total{ok} = %v", got)
	}
}

func TestHandleNoJourney(t *testing.T) {
	s := New(network(t), DefaultOptions(), nil, nil)
	resp := s.Handle(context.Background(), plan("bury", "alt"))
	if resp.Error != nil {
		t.Fatalf("unexpected error %v", resp.Error)
	}
	if resp.Journeys == nil || len(resp.Journeys) != 0 {
		t.Fatalf("expected empty journey list, got %+v", resp.Journeys)
	}
}

func TestHandleExplain(t *testing.T) {
	s := New(network(t), DefaultOptions(), nil, nil)
	req := plan("alt", "cole")
	req.Time = "09:00"
	req.Explain = true
	resp := s.Handle(context.Background(), req)
	if resp.Error != nil || len(resp.Journeys) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.Diagnostics, "no departure after arrival") {
		t.Fatalf("expected the missed tram in diagnostics, got %q", resp.Diagnostics)
	}
}

func TestHandleInitialWait(t *testing.T) {
	s := New(network(t), DefaultOptions(), nil, nil)
	tests := []struct {
		name     string
		minutes  int
		journeys int
	}{
		{"tram within wait", 10, 1},
		{"tram beyond wait", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := plan("alt", "cole")
			minutes := tt.minutes
			req.MaxInitialWaitMinutes = &minutes
			req.Explain = true
			resp := s.Handle(context.Background(), req)
			if resp.Error != nil || len(resp.Journeys) != tt.journeys {
				t.Fatalf("expected %d journeys, got %+v", tt.journeys, resp)
			}
			if tt.journeys == 0 && !strings.Contains(resp.Diagnostics, "initial wait too long") {
				t.Fatalf("expected initial wait exclusion, got %q", resp.Diagnostics)
			}
		})
	}
}

func TestHandleErrors(t *testing.T) {
	neg := -1
	tests := []struct {
		name string
		mod  func(*PlanRequest)
		code string
	}{
		{"missing from", func(r *PlanRequest) { r.From = "" }, CodeInvalidRequest},
		{"missing to", func(r *PlanRequest) { r.To = nil }, CodeInvalidRequest},
		{"bad date", func(r *PlanRequest) { r.Date = "02/03/2026" }, CodeInvalidRequest},
		{"bad time", func(r *PlanRequest) { r.Time = "8am" }, CodeInvalidRequest},
		{"unknown station", func(r *PlanRequest) { r.To = []string{"nowhere"} }, CodeInvalidRequest},
		{"negative changes", func(r *PlanRequest) { r.MaxChanges = &neg }, CodeInvalidRequest},
		{"negative initial wait", func(r *PlanRequest) { r.MaxInitialWaitMinutes = &neg }, CodeInvalidRequest},
		{"unknown mode", func(r *PlanRequest) { r.Modes = []string{"zeppelin"} }, CodeInvalidRequest},
		{"unknown expansion", func(r *PlanRequest) { r.Expansion = "random" }, CodeInvalidRequest},
		{"start is destination", func(r *PlanRequest) { r.To = []string{"alt"} }, CodeInvalidRequest},
	}
	s := New(network(t), DefaultOptions(), nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := plan("alt", "bury")
			tt.mod(&req)
			resp := s.Handle(context.Background(), req)
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Fatalf("expected code %s, got %+v", tt.code, resp.Error)
			}
			if resp.Journeys == nil {
				t.Fatal("expected empty journey list on error")
			}
		})
	}
	if s.breaker.State() != resilience.StateClosed {
		t.Fatal("request errors must not trip the store breaker")
	}
}

func TestHandleRateLimited(t *testing.T) {
	opts := DefaultOptions()
	opts.Rate, opts.Burst = 0.001, 1
	s := New(network(t), opts, nil, nil)
	if resp := s.Handle(context.Background(), plan("alt", "bury")); resp.Error != nil {
		t.Fatalf("first request: %v", resp.Error)
	}
	resp := s.Handle(context.Background(), plan("alt", "bury"))
	if resp.Error == nil || resp.Error.Code != CodeRateLimited {
		t.Fatalf("expected rate limiting, got %+v", resp.Error)
	}
}

type downDB struct{ calls int }

func (d *downDB) Begin(context.Context, ...graph.TxOption) (graph.Transaction, error) {
	d.calls++
	return nil, errors.New("connection refused")
}

func (d *downDB) Close(context.Context) error { return nil }

func TestHandleStoreDown(t *testing.T) {
	reg := metrics.New("journey")
	m := NewMetrics(reg)
	opts := DefaultOptions()
	opts.Breaker = resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute}
	db := &downDB{}
	s := New(db, opts, m, nil)

	for i := 0; i < 2; i++ {
		if resp := s.Handle(context.Background(), plan("alt", "bury")); resp.Error == nil || resp.Error.Code != CodeInternal {
			t.Fatalf("request %d: expected internal error, got %+v", i, resp.Error)
		}
	}
	resp := s.Handle(context.Background(), plan("alt", "bury"))
	if resp.Error == nil || resp.Error.Code != CodeUnavailable {
		t.Fatalf("expected unavailable, got %+v", resp.Error)
	}
	if db.calls != 2 {
		t.Fatalf("expected the open breaker to skip the store, got %d calls", db.calls)
	}
	if got := testutil.ToFloat64(m.breaker.WithLabelValues()); got != 1 {
		t.Fatalf("store_breaker_open = %v", got)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{resilience.ErrRateLimited, CodeRateLimited},
		{resilience.ErrCircuitOpen, CodeUnavailable},
		{graph.NewStructuralError("node n1", "cost", "missing"), CodeStructural},
		{graph.ErrTimeout, CodeTimeout},
		{context.DeadlineExceeded, CodeTimeout},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := codeOf(tt.err); got != tt.want {
			t.Errorf("codeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{8*time.Hour + 5*time.Minute + 59*time.Second, "08:05"},
		{25 * time.Hour, "01:00+1"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.d); got != tt.want {
			t.Errorf("FormatClock(%s) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestServe(t *testing.T) {
	nc := startTestNATS(t)
	s := New(network(t), DefaultOptions(), nil, nil)
	sub, err := s.Serve(nc)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := Plan(ctx, nc, plan("alt", "bury"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil || len(resp.Journeys) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	msg, err := nc.RequestWithContext(ctx, Subject, []byte("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(msg.Data), CodeInvalidRequest) {
		t.Fatalf("expected invalid_request reply, got %s", msg.Data)
	}
}
