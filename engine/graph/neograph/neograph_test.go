package neograph_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/graph/graphtest"
	"github.com/WessleyAI/journeyplanner/engine/graph/neograph"
	"github.com/WessleyAI/journeyplanner/engine/graph/neograph/neotest"
)

func loadFixture(t *testing.T) (*neotest.Server, *neograph.Database, graph.LoadResult) {
	t.Helper()
	b := graphtest.New()
	b.Station("alt", graph.Tram)
	b.Station("bury", graph.Tram)
	b.RouteStation("alt-r1", "alt", "r1", graph.Tram)
	b.RouteStation("bury-r1", "bury", "r1", graph.Tram)
	b.Link("alt", "alt-r1", graph.Board, 30*time.Second)
	b.ToService("alt-r1", "bury-r1", graphtest.ValidOnly(graph.NewDate(2026, 3, 2), "08:00", 10*time.Minute, "t1", "t2"))
	b.Link("bury-r1", "bury", graph.Depart, 30*time.Second)

	srv := neotest.NewServer()
	db := neograph.NewWithOpener(srv)
	res, err := graph.Load(context.Background(), db, b.Snapshot())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return srv, db, res
}

func TestLoadCommitsOnce(t *testing.T) {
	srv, _, res := loadFixture(t)
	st := srv.Stats()
	if st.Committed != 1 {
		t.Fatalf("expected 1 commit, got %d", st.Committed)
	}
	if srv.NodeCount() != 4 {
		t.Fatalf("expected 4 nodes, got %d", srv.NodeCount())
	}
	if len(res.Relationships) != 3 {
		t.Fatalf("expected 3 relationship keys, got %d", len(res.Relationships))
	}
}

func TestCounts(t *testing.T) {
	srv, db, _ := loadFixture(t)
	c, err := db.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.Nodes != 4 || c.Relationships != 3 {
		t.Fatalf("counts = %d nodes, %d rels", c.Nodes, c.Relationships)
	}
	want := map[graph.Label]int64{graph.LabelStation: 2, graph.LabelRouteStation: 2, graph.LabelTram: 4}
	for l, n := range want {
		if c.ByLabel[l] != n {
			t.Fatalf("label %s: expected %d, got %d", l, n, c.ByLabel[l])
		}
	}
	for _, typ := range []graph.RelType{graph.Board, graph.ToService, graph.Depart} {
		if c.ByType[typ] != 1 {
			t.Fatalf("type %s: expected 1, got %d", typ, c.ByType[typ])
		}
	}
	if st := srv.Stats(); st.Statements["counts"] != 3 || st.Closed < 2 {
		t.Fatalf("unexpected server stats %+v", st)
	}
	if !strings.Contains(c.String(), "4 nodes, 3 relationships") {
		t.Fatalf("unexpected rendering %q", c.String())
	}
}

func TestCountsRunError(t *testing.T) {
	srv, db, _ := loadFixture(t)
	srv.RunErr = errors.New("connection reset")
	if _, err := db.Counts(context.Background()); err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected run error, got %v", err)
	}
}

func TestReadThroughFake(t *testing.T) {
	_, db, res := loadFixture(t)
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Close(ctx)

	alt, err := tx.FindStation(ctx, "alt")
	if err != nil {
		t.Fatalf("find station: %v", err)
	}
	if alt.ID() != res.Nodes["alt"] {
		t.Fatalf("station id %s, want %s", alt.ID(), res.Nodes["alt"])
	}

	rels, err := alt.Relationships(ctx, tx, graph.Outgoing, graph.Board)
	if err != nil {
		t.Fatalf("relationships: %v", err)
	}
	if len(rels) != 1 || rels[0].Type() != graph.Board {
		t.Fatalf("expected one BOARD, got %v", rels)
	}

	rs, err := rels[0].EndNode(ctx, tx)
	if err != nil {
		t.Fatalf("end node: %v", err)
	}
	svc, err := rs.Relationships(ctx, tx, graph.Outgoing, graph.ToService)
	if err != nil || len(svc) != 1 {
		t.Fatalf("service rels = %v, %v", svc, err)
	}
	trips, err := svc[0].TripIDs(tx)
	if err != nil {
		t.Fatalf("trip ids: %v", err)
	}
	if len(trips) != 2 || trips[0] != "t1" {
		t.Fatalf("unexpected trips %v", trips)
	}
	if _, err := svc[0].TripIDs(tx); err != nil {
		t.Fatal(err)
	}
	if hits, _ := tx.Cache().Stats(); hits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", hits)
	}
}

func TestMissingEntities(t *testing.T) {
	_, db, _ := loadFixture(t)
	ctx := context.Background()
	tx, _ := db.Begin(ctx)
	defer tx.Close(ctx)

	if _, err := tx.FindStation(ctx, "nowhere"); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("station: expected ErrNotFound, got %v", err)
	}
	if _, err := tx.GetNodeByID(ctx, "4:fake:999999"); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("node: expected ErrNotFound, got %v", err)
	}
	if _, err := tx.GetRelationshipByID(ctx, "4:fake:999999"); !errors.Is(err, graph.ErrNotFound) {
		t.Fatalf("relationship: expected ErrNotFound, got %v", err)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	_, db, res := loadFixture(t)
	ctx := context.Background()
	tx, _ := db.Begin(ctx)
	defer tx.Close(ctx)

	_, err := tx.CreateNode(ctx, graph.NewLabelSet(graph.LabelPlatform), map[string]any{"platform_id": "p"})
	if !errors.Is(err, graph.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	var anyRel graph.RelationshipID
	for _, id := range res.Relationships {
		anyRel = id
	}
	if err := tx.SetRelationshipProperty(ctx, anyRel, graph.PropCost, 1); !errors.Is(err, graph.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestClosedTransaction(t *testing.T) {
	srv, db, _ := loadFixture(t)
	ctx := context.Background()
	tx, _ := db.Begin(ctx)
	if _, err := tx.FindNodes(ctx, graph.LabelStation); err != nil {
		t.Fatal(err)
	}
	if err := tx.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tx.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := tx.FindStation(ctx, "alt"); !errors.Is(err, graph.ErrTransactionClosed) {
		t.Fatalf("expected ErrTransactionClosed, got %v", err)
	}
	if st := srv.Stats(); st.Closed != 2 {
		// one for the load, one for this transaction
		t.Fatalf("expected 2 session closes, got %d", st.Closed)
	}
}

func TestUncommittedWritesRollBack(t *testing.T) {
	srv, db, _ := loadFixture(t)
	ctx := context.Background()
	before := srv.NodeCount()
	tx, err := db.Begin(ctx, graph.WithWrite())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.CreateNode(ctx, graph.NewLabelSet(graph.LabelStation), map[string]any{"station_id": "new"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	tx.Close(ctx)
	if srv.NodeCount() != before {
		t.Fatalf("uncommitted node leaked: %d vs %d", srv.NodeCount(), before)
	}
	if st := srv.Stats(); st.RolledBack != 1 {
		t.Fatalf("expected a rollback, got %d", st.RolledBack)
	}
}

func TestDuplicateStationRejected(t *testing.T) {
	_, db, _ := loadFixture(t)
	ctx := context.Background()
	tx, _ := db.Begin(ctx, graph.WithWrite())
	defer tx.Close(ctx)
	_, err := tx.CreateNode(ctx, graph.NewLabelSet(graph.LabelStation), map[string]any{"station_id": "alt"})
	if !errors.Is(err, graph.ErrStructural) {
		t.Fatalf("expected structural error, got %v", err)
	}
}

func TestMutationInvalidatesCache(t *testing.T) {
	_, db, res := loadFixture(t)
	ctx := context.Background()
	tx, _ := db.Begin(ctx, graph.WithWrite())
	defer tx.Close(ctx)

	var svcID graph.RelationshipID
	for key, id := range res.Relationships {
		if strings.Contains(key, "TO_SERVICE") {
			svcID = id
		}
	}
	r, err := tx.GetRelationshipByID(ctx, svcID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.TripIDs(tx); err != nil {
		t.Fatal(err)
	}
	if tx.Cache().Len() != 1 {
		t.Fatalf("expected cached trips")
	}
	if err := tx.SetRelationshipProperty(ctx, svcID, graph.PropTripIDs, "t9"); err != nil {
		t.Fatalf("set property: %v", err)
	}
	if tx.Cache().Len() != 0 {
		t.Fatal("cache survived mutation")
	}
	r, _ = tx.GetRelationshipByID(ctx, svcID)
	trips, err := r.TripIDs(tx)
	if err != nil || len(trips) != 1 || trips[0] != "t9" {
		t.Fatalf("trips after update = %v, %v", trips, err)
	}
}

func TestTimeout(t *testing.T) {
	_, db, _ := loadFixture(t)
	ctx := context.Background()
	tx, err := db.Begin(ctx, graph.WithTimeout(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Close(ctx)
	time.Sleep(5 * time.Millisecond)
	if _, err := tx.FindStation(ctx, "alt"); !errors.Is(err, graph.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestBeginError(t *testing.T) {
	srv := neotest.NewServer()
	srv.BeginErr = errors.New("connection refused")
	db := neograph.NewWithOpener(srv)
	if _, err := db.Begin(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
