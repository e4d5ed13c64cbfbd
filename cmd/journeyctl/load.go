package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/store"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
)

func (c *cli) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <snapshot.json>",
		Short: "Check a graph snapshot without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := store.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: %d nodes, %d relationships\n", args[0], len(snap.Nodes), len(snap.Relationships))
			return nil
		},
	}
}

func (c *cli) loadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <snapshot.json>",
		Short: "Write a graph snapshot into Neo4j in one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			snap, err := store.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			db, err := store.ConnectNeo4j(ctx, cfg.Neo4j, fn.DefaultRetry, c.logger)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			res, err := graph.Load(ctx, db, snap)
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			c.logger.Info("snapshot loaded", "path", args[0], "nodes", len(res.Nodes), "relationships", len(res.Relationships))
			fmt.Fprintf(c.out, "loaded %d nodes, %d relationships\n", len(res.Nodes), len(res.Relationships))
			return nil
		},
	}
}

func (c *cli) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count nodes by label and relationships by type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			db, err := store.Open(ctx, cfg, fn.DefaultRetry, c.logger)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			counter, ok := db.(graph.Counter)
			if !ok {
				return fmt.Errorf("stats: %T cannot count its contents", db)
			}
			counts, err := counter.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, counts)
			return nil
		},
	}
}
