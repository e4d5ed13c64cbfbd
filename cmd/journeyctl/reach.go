package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/reach"
	"github.com/WessleyAI/journeyplanner/engine/store"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
)

func (c *cli) reachCommand() *cobra.Command {
	var (
		date, clock string
		workers     int
		strict      bool
	)
	cmd := &cobra.Command{
		Use:   "reach [from:to ...]",
		Short: "Check that journeys exist between station pairs",
		Long: `Search every given pair, or every ordered pair of stations when none are
given, and print one line per pair followed by totals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			pairs, err := parsePairs(args)
			if err != nil {
				return err
			}
			d, err := graph.ParseDate(date)
			if err != nil {
				return err
			}
			at, err := journey.ParseClock(clock)
			if err != nil {
				return err
			}
			limits, err := cfg.Limits()
			if err != nil {
				return err
			}

			db, err := store.Open(ctx, cfg, fn.DefaultRetry, c.logger)
			if err != nil {
				return err
			}
			defer db.Close(ctx)
			if len(pairs) == 0 {
				if pairs, err = reach.AllPairs(ctx, db); err != nil {
					return err
				}
			}

			opts := reach.DefaultOptions(d)
			opts.Limits = limits
			opts.Limits.MaxJourneys = 1
			opts.Time = at
			opts.Workers = workers
			opts.TxTimeout = cfg.Neo4j.TxTimeout.Duration
			started := time.Now()
			outcomes, err := reach.New(db, opts, nil, c.logger).Check(ctx, pairs)
			if err != nil {
				return err
			}
			fmt.Fprint(c.out, reach.Summary(outcomes))
			c.logger.Info("reachability checked", "pairs", len(pairs), "duration", time.Since(started))

			if strict {
				for _, o := range outcomes {
					if !o.Reachable {
						return fmt.Errorf("%s is not reachable", o.Pair)
					}
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&date, "date", time.Now().Format("2006-01-02"), "travel date")
	f.StringVar(&clock, "time", "08:00", "earliest departure")
	f.IntVar(&workers, "workers", 4, "concurrent searches")
	f.BoolVar(&strict, "strict", false, "fail unless every pair is reachable")
	return cmd
}

// parsePairs reads "from:to" arguments.
func parsePairs(args []string) ([]reach.Pair, error) {
	pairs := make([]reach.Pair, 0, len(args))
	for _, a := range args {
		from, to, ok := strings.Cut(a, ":")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("pair %q: want from:to", a)
		}
		pairs = append(pairs, reach.Pair{From: from, To: to})
	}
	return pairs, nil
}
