//go:build integration

package neograph_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/graph/graphtest"
	"github.com/WessleyAI/journeyplanner/engine/graph/neograph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	driver, err := neo4j.NewDriverWithContext(url, neo4j.NoAuth())
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("neo4j verify: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestIntegrationLoadAndTraverse(t *testing.T) {
	db := neograph.New(testDriver(t), "", neograph.WithDefaultTimeout(10*time.Second))
	ctx := context.Background()

	b := graphtest.New()
	b.Station("int-a", graph.Tram)
	b.Station("int-b", graph.Tram)
	b.Link("int-a", "int-b", graph.Walk, 4*time.Minute)
	if _, err := graph.Load(ctx, db, b.Snapshot()); err != nil {
		t.Fatalf("load: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Close(ctx)
	a, err := tx.FindStation(ctx, "int-a")
	if err != nil {
		t.Fatalf("find station: %v", err)
	}
	rels, err := a.Relationships(ctx, tx, graph.Outgoing, graph.Walk)
	if err != nil || len(rels) != 1 {
		t.Fatalf("walk rels = %v, %v", rels, err)
	}
	cost, err := rels[0].Cost()
	if err != nil || cost != 4*time.Minute {
		t.Fatalf("cost = %v, %v", cost, err)
	}
}
