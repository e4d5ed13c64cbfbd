package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/journeyplanner/engine/planner"
	"github.com/WessleyAI/journeyplanner/engine/store"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
)

func (c *cli) planCommand() *cobra.Command {
	var (
		req     planner.PlanRequest
		changes int
		wait    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "plan --from <station> --to <station> --date 2006-01-02 --time 15:04",
		Short: "Plan one journey and print the planner's JSON reply",
		Long: `Plan one journey. With --snapshot (or a configured snapshot) the search runs
in process; otherwise the request goes to a running journeyd over NATS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-changes") {
				req.MaxChanges = &changes
			}
			if cmd.Flags().Changed("max-initial-wait") {
				req.MaxInitialWaitMinutes = &wait
			}

			var resp planner.PlanResponse
			if cfg.Snapshot != "" {
				db, err := store.Open(ctx, cfg, fn.DefaultRetry, c.logger)
				if err != nil {
					return err
				}
				defer db.Close(ctx)
				limits, err := cfg.Limits()
				if err != nil {
					return err
				}
				opts := planner.DefaultOptions()
				opts.Limits = limits
				opts.Rate = 0
				resp = planner.New(db, opts, nil, c.logger).Handle(ctx, req)
			} else {
				nc, err := nats.Connect(cfg.NATS.URL, nats.Name("journeyctl"))
				if err != nil {
					return fmt.Errorf("nats connect: %w", err)
				}
				defer nc.Close()
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				if resp, err = planner.Plan(ctx, nc, req); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if resp.Error != nil {
				return resp.Error
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.From, "from", "", "origin station id")
	f.StringSliceVar(&req.To, "to", nil, "destination station id (repeatable)")
	f.StringVar(&req.Date, "date", time.Now().Format("2006-01-02"), "travel date")
	f.StringVar(&req.Time, "time", time.Now().Format("15:04"), "earliest departure")
	f.IntVar(&req.MaxJourneys, "max-journeys", 0, "journeys to return (0 uses the default)")
	f.IntVar(&changes, "max-changes", 0, "maximum changes")
	f.IntVar(&wait, "max-initial-wait", 0, "maximum minutes to wait for the first boarding")
	f.IntVar(&req.MaxDurationMinutes, "max-duration", 0, "maximum journey minutes (0 uses the default)")
	f.StringSliceVar(&req.Modes, "mode", nil, "allowed transport mode (repeatable)")
	f.StringVar(&req.Expansion, "expansion", "", "cost-priority or depth-first")
	f.StringVar(&req.Stop, "stop", "", "stop-at-limit or exhaust")
	f.BoolVar(&req.Explain, "explain", false, "include the exclusion report")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "wait for the planner reply")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
