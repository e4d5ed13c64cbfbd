// Package store opens the graph database a process searches: an in-memory
// graph loaded from a snapshot file, or a Neo4j database.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/graph/memgraph"
	"github.com/WessleyAI/journeyplanner/engine/graph/neograph"
	"github.com/WessleyAI/journeyplanner/pkg/config"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
)

// Open returns the database cfg names. A configured snapshot wins over Neo4j.
func Open(ctx context.Context, cfg config.Config, retry fn.RetryOpts, logger *slog.Logger) (graph.Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Snapshot != "" {
		snap, err := ReadSnapshotFile(cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		db, res, err := memgraph.FromSnapshot(ctx, snap, memgraph.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("store: load %s: %w", cfg.Snapshot, err)
		}
		logger.Info("graph loaded from snapshot", "path", cfg.Snapshot,
			"nodes", len(res.Nodes), "relationships", len(res.Relationships))
		return db, nil
	}
	return ConnectNeo4j(ctx, cfg.Neo4j, retry, logger)
}

// ReadSnapshotFile decodes and validates the JSON snapshot at path.
func ReadSnapshotFile(path string) (graph.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("store: %w", err)
	}
	defer f.Close()
	snap, err := graph.ReadSnapshot(f)
	if err != nil {
		return graph.Snapshot{}, fmt.Errorf("store: %s: %w", path, err)
	}
	return snap, nil
}

// ConnectNeo4j creates a driver and waits for the server to accept
// connections, retrying connectivity failures under retry.
func ConnectNeo4j(ctx context.Context, cfg config.Neo4j, retry fn.RetryOpts, logger *slog.Logger) (*neograph.Database, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URL, neo4j.BasicAuth(cfg.User, cfg.Pass, ""))
	if err != nil {
		return nil, fmt.Errorf("store: neo4j driver: %w", err)
	}
	if retry.Retryable == nil {
		retry.Retryable = neo4j.IsConnectivityError
	}
	attempt := 0
	verified := fn.Retry(ctx, retry, func(ctx context.Context) fn.Result[struct{}] {
		attempt++
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("neo4j not reachable", "url", cfg.URL, "attempt", attempt, "err", err)
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if _, err := verified.Unwrap(); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("store: neo4j %s: %w", cfg.URL, err)
	}
	logger.Info("connected to neo4j", "url", cfg.URL, "database", cfg.Database)
	return neograph.New(driver, cfg.Database,
		neograph.WithLogger(logger),
		neograph.WithDefaultTimeout(cfg.TxTimeout.Duration),
	), nil
}
