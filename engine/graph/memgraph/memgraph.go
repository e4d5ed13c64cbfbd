// Package memgraph is the in-memory backing store of the transit graph.
//
// Committed state is guarded by a RWMutex and shared by read transactions.
// A write transaction buffers its mutations in an overlay that only it can
// see, and merges the overlay on Commit. Writers are serialised.
package memgraph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/WessleyAI/journeyplanner/engine/graph"
)

// Database is an in-memory graph.
type Database struct {
	mu       sync.RWMutex
	nodes    map[graph.NodeID]*graph.PropertyNode
	rels     map[graph.RelationshipID]*graph.PropertyRelationship
	out      map[graph.NodeID][]graph.RelationshipID
	in       map[graph.NodeID][]graph.RelationshipID
	byLabel  map[graph.Label][]graph.NodeID
	stations map[string]graph.NodeID

	writer sync.Mutex
	seq    atomic.Int64
	closed atomic.Bool
	logger *slog.Logger
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger used for transaction lifecycle warnings.
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) { d.logger = l }
}

// New creates an empty Database.
func New(opts ...Option) *Database {
	d := &Database{
		nodes:    make(map[graph.NodeID]*graph.PropertyNode),
		rels:     make(map[graph.RelationshipID]*graph.PropertyRelationship),
		out:      make(map[graph.NodeID][]graph.RelationshipID),
		in:       make(map[graph.NodeID][]graph.RelationshipID),
		byLabel:  make(map[graph.Label][]graph.NodeID),
		stations: make(map[string]graph.NodeID),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// FromSnapshot builds a Database holding s.
func FromSnapshot(ctx context.Context, s graph.Snapshot, opts ...Option) (*Database, graph.LoadResult, error) {
	db := New(opts...)
	res, err := graph.Load(ctx, db, s)
	if err != nil {
		return nil, graph.LoadResult{}, err
	}
	return db, res, nil
}

// Begin opens a transaction. Write transactions block until any other
// writer has closed.
func (d *Database) Begin(ctx context.Context, opts ...graph.TxOption) (graph.Transaction, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("memgraph: %w", graph.ErrTransactionClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := graph.NewTxConfig(opts...)
	if cfg.Write {
		d.writer.Lock()
	}
	return newTx(d, cfg), nil
}

// Close marks the database closed; subsequent Begin calls fail.
func (d *Database) Close(_ context.Context) error {
	d.closed.Store(true)
	return nil
}

// Stats returns node and relationship counts of committed state.
func (d *Database) Stats() (nodes, relationships int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes), len(d.rels)
}

// Counts implements graph.Counter over committed state.
func (d *Database) Counts(ctx context.Context) (graph.Counts, error) {
	if err := ctx.Err(); err != nil {
		return graph.Counts{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := graph.NewCounts()
	c.Nodes = int64(len(d.nodes))
	c.Relationships = int64(len(d.rels))
	for _, n := range d.nodes {
		for _, l := range n.Labels().Slice() {
			c.ByLabel[l]++
		}
	}
	for _, r := range d.rels {
		c.ByType[r.Type()]++
	}
	return c, nil
}

func (d *Database) nextNodeID() graph.NodeID {
	return graph.NodeID(fmt.Sprintf("n%d", d.seq.Add(1)))
}

func (d *Database) nextRelID() graph.RelationshipID {
	return graph.RelationshipID(fmt.Sprintf("r%d", d.seq.Add(1)))
}

// merge applies an overlay. Caller must not hold mu.
func (d *Database) merge(o *overlay) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range o.nodeOrder {
		n := o.nodes[id]
		d.nodes[id] = n
		for _, l := range n.Labels().Slice() {
			d.byLabel[l] = append(d.byLabel[l], id)
		}
	}
	for sid, id := range o.stations {
		d.stations[sid] = id
	}
	for _, id := range o.relOrder {
		r := o.rels[id]
		d.rels[id] = r
		d.out[r.StartNodeID()] = append(d.out[r.StartNodeID()], id)
		d.in[r.EndNodeID()] = append(d.in[r.EndNodeID()], id)
	}
	for id, r := range o.updated {
		d.rels[id] = r
	}
}

var (
	_ graph.Database = (*Database)(nil)
	_ graph.Counter  = (*Database)(nil)
)
