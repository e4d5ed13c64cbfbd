// Package main is the operator CLI: it loads graph snapshots into Neo4j,
// plans single journeys and checks reachability across stations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/journeyplanner/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCLI(os.Stdout, os.Stderr).root().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds state shared by all commands.
type cli struct {
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger

	configPath string
	snapshot   string
	verbose    bool
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{out: out, errOut: errOut, logger: slog.New(slog.NewTextHandler(errOut, nil))}
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "journeyctl",
		Short:         "Operate the journey planner",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelInfo
			if c.verbose {
				level = slog.LevelDebug
			}
			c.logger = slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "TOML config file (default $"+config.EnvFile+")")
	root.PersistentFlags().StringVar(&c.snapshot, "snapshot", "", "search an in-memory graph loaded from this snapshot")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.validateCommand())
	root.AddCommand(c.loadCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.planCommand())
	root.AddCommand(c.reachCommand())
	return root
}

func (c *cli) config() (config.Config, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv(config.EnvFile)
	}
	cfg, err := config.LoadFrom(path, os.Getenv)
	if err != nil {
		return config.Config{}, err
	}
	if c.snapshot != "" {
		cfg.Snapshot = c.snapshot
	}
	return cfg, nil
}
