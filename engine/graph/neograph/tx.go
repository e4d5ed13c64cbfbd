package neograph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type tx struct {
	db       *Database
	cypher   CypherTx
	cfg      graph.TxConfig
	deadline time.Time
	cache    *graph.TxCache
	nodes    map[graph.NodeID]*graph.PropertyNode

	used      bool
	dirty     bool
	committed bool
	closed    bool
}

func newTx(db *Database, cypher CypherTx, cfg graph.TxConfig) *tx {
	t := &tx{
		db:     db,
		cypher: cypher,
		cfg:    cfg,
		cache:  graph.NewTxCache(),
		nodes:  make(map[graph.NodeID]*graph.PropertyNode),
	}
	if cfg.Timeout > 0 {
		t.deadline = time.Now().Add(cfg.Timeout)
	}
	return t
}

func (t *tx) check(ctx context.Context) error {
	if t.closed {
		return graph.ErrTransactionClosed
	}
	if !t.deadline.IsZero() && time.Now().After(t.deadline) {
		return fmt.Errorf("neograph: %w after %s", graph.ErrTimeout, t.cfg.Timeout)
	}
	if err := ctx.Err(); err != nil {
		return mapError(err)
	}
	t.used = true
	return nil
}

// collect runs query and drains its records.
func (t *tx) collect(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := t.cypher.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("neograph run: %w", mapError(err))
	}
	var recs []*neo4j.Record
	for res.Next(ctx) {
		recs = append(recs, res.Record())
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("neograph result: %w", mapError(err))
	}
	return recs, nil
}

func (t *tx) Cache() *graph.TxCache { return t.cache }

func (t *tx) GetNodeByID(ctx context.Context, id graph.NodeID) (graph.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if n, ok := t.nodes[id]; ok {
		return n, nil
	}
	recs, err := t.collect(ctx, QueryNodeByID, map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("node %s: %w", id, graph.ErrNotFound)
	}
	n, err := nodeFromRecord(recs[0], "n")
	if err != nil {
		return nil, err
	}
	t.nodes[id] = n
	return n, nil
}

func (t *tx) FindNodes(ctx context.Context, label graph.Label) ([]graph.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	recs, err := t.collect(ctx, QueryNodesByLabel, map[string]any{"label": string(label)})
	if err != nil {
		return nil, err
	}
	out := make([]graph.Node, 0, len(recs))
	for _, rec := range recs {
		n, err := nodeFromRecord(rec, "n")
		if err != nil {
			return nil, err
		}
		t.nodes[n.ID()] = n
		out = append(out, n)
	}
	return out, nil
}

func (t *tx) FindStation(ctx context.Context, stationID string) (graph.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	recs, err := t.collect(ctx, QueryStation, map[string]any{"stationId": stationID})
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("station %s: %w", stationID, graph.ErrNotFound)
	case 1:
	default:
		return nil, graph.NewStructuralError(fmt.Sprintf("station %s", stationID), graph.PropStationID, "duplicate station id")
	}
	n, err := nodeFromRecord(recs[0], "n")
	if err != nil {
		return nil, err
	}
	t.nodes[n.ID()] = n
	return n, nil
}

func (t *tx) GetRelationshipByID(ctx context.Context, id graph.RelationshipID) (graph.Relationship, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	recs, err := t.collect(ctx, QueryRelationshipByID, map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("relationship %s: %w", id, graph.ErrNotFound)
	}
	return relationshipFromRecord(recs[0], "r")
}

func (t *tx) Relationships(ctx context.Context, id graph.NodeID, dir graph.Direction, types ...graph.RelType) ([]graph.Relationship, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	recs, err := t.collect(ctx, relationshipQuery(dir), map[string]any{
		"id":    string(id),
		"types": typeParam(types),
	})
	if err != nil {
		return nil, err
	}
	out := make([]graph.Relationship, 0, len(recs))
	for _, rec := range recs {
		r, err := relationshipFromRecord(rec, "r")
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (t *tx) writable(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if !t.cfg.Write {
		return graph.ErrReadOnly
	}
	t.dirty = true
	t.cache.Invalidate()
	clear(t.nodes)
	return nil
}

func (t *tx) CreateNode(ctx context.Context, labels graph.LabelSet, props map[string]any) (graph.Node, error) {
	if err := t.writable(ctx); err != nil {
		return nil, err
	}
	p, err := graph.NormalizeProps(props)
	if err != nil {
		return nil, graph.NewStructuralError("new node", "", err.Error())
	}
	if labels.Has(graph.LabelStation) {
		probe := graph.NewNode("", labels, p)
		sid, err := probe.StationID()
		if err != nil {
			return nil, err
		}
		recs, err := t.collect(ctx, QueryStation, map[string]any{"stationId": sid})
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			return nil, graph.NewStructuralError("new node", graph.PropStationID, fmt.Sprintf("duplicate station %s", sid))
		}
	}
	recs, err := t.collect(ctx, createNodeStatement(labels), map[string]any{"props": map[string]any(p)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.New("neograph: create node returned no record")
	}
	return nodeFromRecord(recs[0], "n")
}

func (t *tx) CreateRelationship(ctx context.Context, start, end graph.NodeID, typ graph.RelType, props map[string]any) (graph.Relationship, error) {
	if err := t.writable(ctx); err != nil {
		return nil, err
	}
	p, err := graph.NormalizeProps(props)
	if err != nil {
		return nil, graph.NewStructuralError("new relationship", "", err.Error())
	}
	if _, err := graph.NewRelationship("", typ, start, end, p).Cost(); err != nil {
		return nil, err
	}
	recs, err := t.collect(ctx, createRelationshipStatement(typ), map[string]any{
		"from":  string(start),
		"to":    string(end),
		"props": map[string]any(p),
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("relationship %s from %s to %s: %w", typ, start, end, graph.ErrNotFound)
	}
	return relationshipFromRecord(recs[0], "r")
}

func (t *tx) SetRelationshipProperty(ctx context.Context, id graph.RelationshipID, key string, value any) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	p, err := graph.NormalizeProps(map[string]any{key: value})
	if err != nil {
		return graph.NewStructuralError(fmt.Sprintf("relationship %s", id), key, err.Error())
	}
	recs, err := t.collect(ctx, QuerySetRelProperty, map[string]any{"id": string(id), "props": map[string]any(p)})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("relationship %s: %w", id, graph.ErrNotFound)
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if err := t.cypher.Commit(ctx); err != nil {
		return fmt.Errorf("neograph commit: %w", mapError(err))
	}
	t.committed = true
	t.dirty = false
	return nil
}

// Close rolls back uncommitted work and releases the session.
func (t *tx) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	switch {
	case t.dirty:
		t.db.logger.Warn("neograph: transaction closed with uncommitted writes, rolling back")
	case !t.committed && !t.used:
		t.db.logger.Warn("neograph: transaction closed without being used")
	}
	var rerr error
	if !t.committed {
		rerr = t.cypher.Rollback(ctx)
	}
	if err := t.cypher.Close(ctx); err != nil && rerr == nil {
		rerr = err
	}
	if rerr != nil {
		return fmt.Errorf("neograph close: %w", mapError(rerr))
	}
	return nil
}

var _ graph.Transaction = (*tx)(nil)
