// Package neograph is the Neo4j backing store of the transit graph. Each
// graph transaction owns one session and one explicit Neo4j transaction;
// identities are Neo4j element ids.
package neograph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Database opens graph transactions against Neo4j.
type Database struct {
	driver         neo4j.DriverWithContext
	opener         TxOpener
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Database.
type Option func(*Database)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(d *Database) { d.logger = l } }

// WithDefaultTimeout applies a transaction timeout when Begin is given none.
func WithDefaultTimeout(t time.Duration) Option {
	return func(d *Database) { d.defaultTimeout = t }
}

// New creates a Database on top of driver, using the named database (empty
// for the server default).
func New(driver neo4j.DriverWithContext, database string, opts ...Option) *Database {
	return NewWithOpener(&driverOpener{driver: driver, database: database}, append(opts, withDriver(driver))...)
}

// NewWithOpener creates a Database using a custom transaction opener.
func NewWithOpener(opener TxOpener, opts ...Option) *Database {
	d := &Database{opener: opener, logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withDriver(driver neo4j.DriverWithContext) Option {
	return func(d *Database) { d.driver = driver }
}

// Begin opens a graph transaction backed by an explicit Neo4j transaction.
func (d *Database) Begin(ctx context.Context, opts ...graph.TxOption) (graph.Transaction, error) {
	cfg := graph.NewTxConfig(opts...)
	if cfg.Timeout == 0 {
		cfg.Timeout = d.defaultTimeout
	}
	var txCfg []func(*neo4j.TransactionConfig)
	if cfg.Timeout > 0 {
		txCfg = append(txCfg, neo4j.WithTxTimeout(cfg.Timeout))
	}
	cypher, err := d.opener.BeginTx(ctx, cfg.Write, txCfg)
	if err != nil {
		return nil, fmt.Errorf("neograph begin: %w", mapError(err))
	}
	return newTx(d, cypher, cfg), nil
}

// Close closes the underlying driver, if this Database owns one.
func (d *Database) Close(ctx context.Context) error {
	if d.driver == nil {
		return nil
	}
	return d.driver.Close(ctx)
}

// timeoutCodes are the Neo4j status codes reported for expired transactions.
var timeoutCodes = []string{
	"Neo.ClientError.Transaction.TransactionTimedOut",
	"Neo.ClientError.Transaction.TransactionTimedOutClientConfiguration",
	"Neo.TransientError.Transaction.LockClientStopped",
}

// mapError translates driver errors into the graph error taxonomy. Timeouts
// are surfaced as graph.ErrTimeout and never retried here.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", graph.ErrTimeout, err)
	}
	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		for _, code := range timeoutCodes {
			if strings.EqualFold(nerr.Code, code) {
				return fmt.Errorf("%w: %s", graph.ErrTimeout, nerr.Msg)
			}
		}
	}
	return err
}

var _ graph.Database = (*Database)(nil)
