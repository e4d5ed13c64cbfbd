package memgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// overlay holds a write transaction's uncommitted mutations.
type overlay struct {
	nodes     map[graph.NodeID]*graph.PropertyNode
	nodeOrder []graph.NodeID
	rels      map[graph.RelationshipID]*graph.PropertyRelationship
	relOrder  []graph.RelationshipID
	out       map[graph.NodeID][]graph.RelationshipID
	in        map[graph.NodeID][]graph.RelationshipID
	stations  map[string]graph.NodeID
	updated   map[graph.RelationshipID]*graph.PropertyRelationship
}

func newOverlay() *overlay {
	return &overlay{
		nodes:    make(map[graph.NodeID]*graph.PropertyNode),
		rels:     make(map[graph.RelationshipID]*graph.PropertyRelationship),
		out:      make(map[graph.NodeID][]graph.RelationshipID),
		in:       make(map[graph.NodeID][]graph.RelationshipID),
		stations: make(map[string]graph.NodeID),
		updated:  make(map[graph.RelationshipID]*graph.PropertyRelationship),
	}
}

func (o *overlay) empty() bool {
	return len(o.nodeOrder) == 0 && len(o.relOrder) == 0 && len(o.updated) == 0
}

type tx struct {
	db       *Database
	cfg      graph.TxConfig
	deadline time.Time
	cache    *graph.TxCache
	pending  *overlay

	used      bool
	committed bool
	closed    bool
}

func newTx(db *Database, cfg graph.TxConfig) *tx {
	t := &tx{db: db, cfg: cfg, cache: graph.NewTxCache()}
	if cfg.Timeout > 0 {
		t.deadline = time.Now().Add(cfg.Timeout)
	}
	if cfg.Write {
		t.pending = newOverlay()
	}
	return t
}

// check guards every operation against lifecycle and timeout violations.
func (t *tx) check(ctx context.Context) error {
	if t.closed {
		return graph.ErrTransactionClosed
	}
	if !t.deadline.IsZero() && time.Now().After(t.deadline) {
		return fmt.Errorf("memgraph: %w after %s", graph.ErrTimeout, t.cfg.Timeout)
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("memgraph: %w: %v", graph.ErrTimeout, err)
		}
		return err
	}
	t.used = true
	return nil
}

func (t *tx) Cache() *graph.TxCache { return t.cache }

func (t *tx) GetNodeByID(ctx context.Context, id graph.NodeID) (graph.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if t.pending != nil {
		if n, ok := t.pending.nodes[id]; ok {
			return n, nil
		}
	}
	t.db.mu.RLock()
	n, ok := t.db.nodes[id]
	t.db.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, graph.ErrNotFound)
	}
	return n, nil
}

func (t *tx) FindNodes(ctx context.Context, label graph.Label) ([]graph.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.db.mu.RLock()
	ids := t.db.byLabel[label]
	out := make([]graph.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.db.nodes[id])
	}
	t.db.mu.RUnlock()
	if t.pending != nil {
		for _, id := range t.pending.nodeOrder {
			if n := t.pending.nodes[id]; n.HasLabel(label) {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func (t *tx) FindStation(ctx context.Context, stationID string) (graph.Node, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if t.pending != nil {
		if id, ok := t.pending.stations[stationID]; ok {
			return t.pending.nodes[id], nil
		}
	}
	t.db.mu.RLock()
	id, ok := t.db.stations[stationID]
	var n graph.Node
	if ok {
		n = t.db.nodes[id]
	}
	t.db.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("station %s: %w", stationID, graph.ErrNotFound)
	}
	return n, nil
}

func (t *tx) GetRelationshipByID(ctx context.Context, id graph.RelationshipID) (graph.Relationship, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	if r, ok := t.lookupRel(id); ok {
		return r, nil
	}
	return nil, fmt.Errorf("relationship %s: %w", id, graph.ErrNotFound)
}

// lookupRel resolves id through the overlay first. Caller must not hold db.mu.
func (t *tx) lookupRel(id graph.RelationshipID) (*graph.PropertyRelationship, bool) {
	if t.pending != nil {
		if r, ok := t.pending.rels[id]; ok {
			return r, true
		}
		if r, ok := t.pending.updated[id]; ok {
			return r, true
		}
	}
	t.db.mu.RLock()
	r, ok := t.db.rels[id]
	t.db.mu.RUnlock()
	return r, ok
}

func (t *tx) Relationships(ctx context.Context, id graph.NodeID, dir graph.Direction, types ...graph.RelType) ([]graph.Relationship, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	var ids []graph.RelationshipID
	t.db.mu.RLock()
	if dir == graph.Outgoing || dir == graph.Both {
		ids = append(ids, t.db.out[id]...)
	}
	if dir == graph.Incoming || dir == graph.Both {
		ids = append(ids, t.db.in[id]...)
	}
	t.db.mu.RUnlock()
	if t.pending != nil {
		if dir == graph.Outgoing || dir == graph.Both {
			ids = append(ids, t.pending.out[id]...)
		}
		if dir == graph.Incoming || dir == graph.Both {
			ids = append(ids, t.pending.in[id]...)
		}
	}

	out := make([]graph.Relationship, 0, len(ids))
	seen := make(map[graph.RelationshipID]bool, len(ids))
	for _, rid := range ids {
		if seen[rid] {
			continue // self loop listed in both directions
		}
		seen[rid] = true
		r, ok := t.lookupRel(rid)
		if !ok {
			return nil, graph.NewStructuralError(fmt.Sprintf("node %s", id), "", fmt.Sprintf("dangling relationship %s", rid))
		}
		if matchesType(r.Type(), types) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matchesType(t graph.RelType, types []graph.RelType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (t *tx) writable(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if t.pending == nil {
		return graph.ErrReadOnly
	}
	t.cache.Invalidate()
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
	id := t.db.nextNodeID()
	n := graph.NewNode(id, labels, p)
	if labels.Has(graph.LabelStation) {
		sid, err := n.StationID()
		if err != nil {
			return nil, err
		}
		if t.stationTaken(sid) {
			return nil, graph.NewStructuralError("new node", graph.PropStationID, fmt.Sprintf("duplicate station %s", sid))
		}
		t.pending.stations[sid] = id
	}
	t.pending.nodes[id] = n
	t.pending.nodeOrder = append(t.pending.nodeOrder, id)
	return n, nil
}

func (t *tx) stationTaken(sid string) bool {
	if _, ok := t.pending.stations[sid]; ok {
		return true
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	_, ok := t.db.stations[sid]
	return ok
}

func (t *tx) nodeExists(id graph.NodeID) bool {
	if _, ok := t.pending.nodes[id]; ok {
		return true
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	_, ok := t.db.nodes[id]
	return ok
}

func (t *tx) CreateRelationship(ctx context.Context, start, end graph.NodeID, typ graph.RelType, props map[string]any) (graph.Relationship, error) {
	if err := t.writable(ctx); err != nil {
		return nil, err
	}
	if !t.nodeExists(start) || !t.nodeExists(end) {
		return nil, fmt.Errorf("relationship %s from %s to %s: %w", typ, start, end, graph.ErrNotFound)
	}
	p, err := graph.NormalizeProps(props)
	if err != nil {
		return nil, graph.NewStructuralError("new relationship", "", err.Error())
	}
	id := t.db.nextRelID()
	r := graph.NewRelationship(id, typ, start, end, p)
	if _, err := r.Cost(); err != nil {
		return nil, err
	}
	t.pending.rels[id] = r
	t.pending.relOrder = append(t.pending.relOrder, id)
	t.pending.out[start] = append(t.pending.out[start], id)
	t.pending.in[end] = append(t.pending.in[end], id)
	return r, nil
}

func (t *tx) SetRelationshipProperty(ctx context.Context, id graph.RelationshipID, key string, value any) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	p, err := graph.NormalizeProps(map[string]any{key: value})
	if err != nil {
		return graph.NewStructuralError(fmt.Sprintf("relationship %s", id), key, err.Error())
	}
	r, ok := t.lookupRel(id)
	if !ok {
		return fmt.Errorf("relationship %s: %w", id, graph.ErrNotFound)
	}
	updated := r.WithProperty(key, p[key])
	if _, ok := t.pending.rels[id]; ok {
		t.pending.rels[id] = updated
	} else {
		t.pending.updated[id] = updated
	}
	return nil
}

func (t *tx) Commit(ctx context.Context) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if t.pending != nil {
		t.db.merge(t.pending)
		t.pending = newOverlay()
	}
	t.committed = true
	return nil
}

func (t *tx) Close(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true
	switch {
	case t.pending != nil && !t.pending.empty():
		t.db.logger.Warn("memgraph: transaction closed with uncommitted writes, discarding",
			"nodes", len(t.pending.nodeOrder), "relationships", len(t.pending.relOrder))
	case !t.committed && !t.used:
		t.db.logger.Warn("memgraph: transaction closed without being used")
	}
	if t.cfg.Write {
		t.pending = nil
		t.db.writer.Unlock()
	}
	return nil
}

var _ graph.Transaction = (*tx)(nil)
