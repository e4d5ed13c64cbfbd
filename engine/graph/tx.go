package graph

import (
	"context"
	"time"
)

// Reader resolves graph entities within a transaction.
type Reader interface {
	GetNodeByID(ctx context.Context, id NodeID) (Node, error)
	FindNodes(ctx context.Context, label Label) ([]Node, error)
	// FindStation returns the STATION node with the given station id.
	FindStation(ctx context.Context, stationID string) (Node, error)
	GetRelationshipByID(ctx context.Context, id RelationshipID) (Relationship, error)
	Relationships(ctx context.Context, id NodeID, dir Direction, types ...RelType) ([]Relationship, error)
	// Cache returns the transaction-local cache of derived attributes.
	Cache() *TxCache
}

// Writer mutates the graph. Every mutation invalidates the transaction cache.
type Writer interface {
	CreateNode(ctx context.Context, labels LabelSet, props map[string]any) (Node, error)
	CreateRelationship(ctx context.Context, start, end NodeID, typ RelType, props map[string]any) (Relationship, error)
	SetRelationshipProperty(ctx context.Context, id RelationshipID, key string, value any) error
}

// Transaction is a scoped view over the graph. A transaction is used by one
// goroutine at a time; independent read transactions may run concurrently.
type Transaction interface {
	Reader
	Writer
	Commit(ctx context.Context) error
	// Close releases the transaction. It is safe to call more than once;
	// uncommitted writes are discarded.
	Close(ctx context.Context) error
}

// Database opens transactions over a graph.
type Database interface {
	Begin(ctx context.Context, opts ...TxOption) (Transaction, error)
	Close(ctx context.Context) error
}

// TxConfig holds the settings a transaction was opened with.
type TxConfig struct {
	Write   bool
	Timeout time.Duration
}

// TxOption configures a transaction.
type TxOption func(*TxConfig)

// WithWrite opens a write transaction.
func WithWrite() TxOption { return func(c *TxConfig) { c.Write = true } }

// WithTimeout bounds the lifetime of the transaction. Operations after the
// timeout fail with ErrTimeout.
func WithTimeout(d time.Duration) TxOption { return func(c *TxConfig) { c.Timeout = d } }

// NewTxConfig applies opts to a zero config.
func NewTxConfig(opts ...TxOption) TxConfig {
	var c TxConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}
