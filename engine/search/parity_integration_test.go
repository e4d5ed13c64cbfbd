//go:build integration

package search_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/journeyplanner/engine/graph/neograph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
)

// liveNeo4j connects to NEO4J_URL and empties the database when t ends.
func liveNeo4j(t *testing.T) *neograph.Database {
	t.Helper()
	url := os.Getenv("NEO4J_URL")
	if url == "" {
		url = "neo4j://localhost:7687"
	}
	driver, err := neo4j.NewDriverWithContext(url, neo4j.NoAuth())
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("neo4j verify: %v", err)
	}
	wipe := func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer sess.Close(ctx)
		if _, err := sess.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
			t.Fatalf("neo4j wipe: %v", err)
		}
	}
	wipe()
	t.Cleanup(func() {
		wipe()
		driver.Close(ctx)
	})
	return neograph.New(driver, "", neograph.WithDefaultTimeout(10*time.Second))
}

func TestIntegrationBackingParity(t *testing.T) {
	for name, build := range parityNetworks() {
		for _, policy := range []journey.ExpansionPolicy{journey.CostPriority, journey.DepthFirst} {
			t.Run(name+"/"+policy.String(), func(t *testing.T) {
				mem := inMemory(t, build())
				neo := load(t, liveNeo4j(t), build().Snapshot())

				memReq := mem.request("start", "dest")
				memReq.Expansion = policy
				neoReq := neo.request("start", "dest")
				neoReq.Expansion = policy

				a, _ := mem.find(t, memReq)
				b, _ := neo.find(t, neoReq)
				sameJourneys(t, mem, a, neo, b)
			})
		}
	}
}
