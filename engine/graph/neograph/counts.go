package neograph

import (
	"context"
	"fmt"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// Counts implements graph.Counter. Nodes are counted once per label they
// carry in ByLabel.
func (d *Database) Counts(ctx context.Context) (graph.Counts, error) {
	cy, err := d.opener.BeginTx(ctx, false, nil)
	if err != nil {
		return graph.Counts{}, fmt.Errorf("neograph counts: %w", mapError(err))
	}
	defer func() {
		_ = cy.Rollback(ctx)
		_ = cy.Close(ctx)
	}()

	c := graph.NewCounts()
	total, err := groupCounts(ctx, cy, QueryNodeTotal)
	if err != nil {
		return graph.Counts{}, err
	}
	c.Nodes = total["nodes"]
	labels, err := groupCounts(ctx, cy, QueryLabelCounts)
	if err != nil {
		return graph.Counts{}, err
	}
	for l, n := range labels {
		c.ByLabel[graph.Label(l)] = n
	}
	types, err := groupCounts(ctx, cy, QueryRelationCounts)
	if err != nil {
		return graph.Counts{}, err
	}
	for t, n := range types {
		c.ByType[graph.RelType(t)] = n
		c.Relationships += n
	}
	return c, nil
}

// groupCounts runs a key/count statement into a map.
func groupCounts(ctx context.Context, cy CypherRunner, query string) (map[string]int64, error) {
	res, err := cy.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("neograph counts: %w", mapError(err))
	}
	counts := make(map[string]int64)
	for res.Next(ctx) {
		rec := res.Record()
		key, _ := rec.Get("key")
		cnt, _ := rec.Get("count")
		k, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("neograph counts: key %v is %T", key, key)
		}
		n, ok := cnt.(int64)
		if !ok {
			return nil, fmt.Errorf("neograph counts: count of %s is %T", k, cnt)
		}
		counts[k] = n
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("neograph counts: %w", mapError(err))
	}
	return counts, nil
}

var _ graph.Counter = (*Database)(nil)
