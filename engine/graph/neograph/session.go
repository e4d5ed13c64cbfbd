package neograph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CypherResult is the minimal interface needed from a neo4j result.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner runs a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherTx is an explicit transaction bound to its own session.
type CypherTx interface {
	CypherRunner
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Close ends the transaction and its session.
	Close(ctx context.Context) error
}

// TxOpener begins explicit transactions.
type TxOpener interface {
	BeginTx(ctx context.Context, write bool, cfg []func(*neo4j.TransactionConfig)) (CypherTx, error)
}

// driverOpener opens a fresh session per transaction on a real driver.
type driverOpener struct {
	driver   neo4j.DriverWithContext
	database string
}

func (o *driverOpener) BeginTx(ctx context.Context, write bool, cfg []func(*neo4j.TransactionConfig)) (CypherTx, error) {
	mode := neo4j.AccessModeRead
	if write {
		mode = neo4j.AccessModeWrite
	}
	sess := o.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: o.database})
	tx, err := sess.BeginTransaction(ctx, cfg...)
	if err != nil {
		sess.Close(ctx)
		return nil, err
	}
	return &driverTx{sess: sess, tx: tx}, nil
}

// driverTx adapts neo4j.ExplicitTransaction to CypherTx.
type driverTx struct {
	sess neo4j.SessionWithContext
	tx   neo4j.ExplicitTransaction
}

func (t *driverTx) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *driverTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *driverTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *driverTx) Close(ctx context.Context) error {
	err := t.tx.Close(ctx)
	if serr := t.sess.Close(ctx); err == nil {
		err = serr
	}
	return err
}
