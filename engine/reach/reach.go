// Package reach checks that journeys exist between many station pairs at
// once. Every pair runs its own search in its own read transaction.
package reach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/search"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
)

// Pair names two stations by station id.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (p Pair) String() string { return p.From + "->" + p.To }

// Outcome is the result of checking one pair.
type Outcome struct {
	Pair
	Reachable bool
	// Cost of the cheapest journey found, when Reachable.
	Cost    time.Duration
	Changes int
	Err     error
}

// Options configures a Checker.
type Options struct {
	Limits  journey.Limits
	Date    graph.Date
	Time    time.Duration
	Workers int
	// TxTimeout bounds each pair's transaction. Zero leaves it unbounded.
	TxTimeout time.Duration
}

// DefaultOptions checks departures at 08:00 on date with four workers.
func DefaultOptions(date graph.Date) Options {
	l := journey.DefaultLimits()
	l.MaxJourneys = 1
	return Options{Limits: l, Date: date, Time: 8 * time.Hour, Workers: 4, TxTimeout: 30 * time.Second}
}

// Checker runs reachability checks against a database.
type Checker struct {
	db       graph.Database
	opts     Options
	logger   *slog.Logger
	recorder search.Recorder
}

// New creates a Checker. A nil recorder is allowed.
func New(db graph.Database, opts Options, recorder search.Recorder, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{db: db, opts: opts, logger: logger, recorder: recorder}
}

// Check searches every pair concurrently and returns outcomes in pair order.
// A failed pair carries its error; Check itself only fails when ctx ends.
func (c *Checker) Check(ctx context.Context, pairs []Pair) ([]Outcome, error) {
	results := fn.ParMapResult(ctx, pairs, c.opts.Workers, func(ctx context.Context, p Pair) fn.Result[Outcome] {
		return fn.FromPair(c.check(ctx, p))
	})
	out := make([]Outcome, len(pairs))
	for i, r := range results {
		o, err := r.Unwrap()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, fmt.Errorf("reach: %w", err)
			}
			o = Outcome{Pair: pairs[i], Err: err}
			c.logger.Warn("reachability check failed", "pair", pairs[i].String(), "err", err)
		}
		out[i] = o
	}
	return out, nil
}

func (c *Checker) check(ctx context.Context, p Pair) (Outcome, error) {
	var txOpts []graph.TxOption
	if c.opts.TxTimeout > 0 {
		txOpts = append(txOpts, graph.WithTimeout(c.opts.TxTimeout))
	}
	tx, err := c.db.Begin(ctx, txOpts...)
	if err != nil {
		return Outcome{}, fmt.Errorf("begin %s: %w", p, err)
	}
	defer tx.Close(ctx)

	from, err := tx.FindStation(ctx, p.From)
	if err != nil {
		return Outcome{}, fmt.Errorf("station %s: %w", p.From, err)
	}
	to, err := tx.FindStation(ctx, p.To)
	if err != nil {
		return Outcome{}, fmt.Errorf("station %s: %w", p.To, err)
	}

	req := c.opts.Limits.Request(from.ID(), []graph.NodeID{to.ID()}, c.opts.Date, c.opts.Time)
	var opts []search.Option
	opts = append(opts, search.WithLogger(c.logger))
	if c.recorder != nil {
		opts = append(opts, search.WithRecorder(c.recorder))
	}
	journeys, err := search.FindPaths(ctx, tx, req, opts...)
	if err != nil {
		return Outcome{}, fmt.Errorf("search %s: %w", p, err)
	}
	o := Outcome{Pair: p, Reachable: len(journeys) > 0}
	if o.Reachable {
		o.Cost = journeys[0].Cost
		o.Changes = journeys[0].Changes
	}
	return o, nil
}

// AllPairs lists every ordered pair of distinct stations, sorted.
func AllPairs(ctx context.Context, db graph.Database) ([]Pair, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Close(ctx)
	nodes, err := tx.FindNodes(ctx, graph.LabelStation)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		sid, err := n.StationID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, sid)
	}
	sort.Strings(ids)
	var pairs []Pair
	for _, a := range ids {
		for _, b := range ids {
			if a != b {
				pairs = append(pairs, Pair{From: a, To: b})
			}
		}
	}
	return pairs, nil
}

// Summary renders outcomes as one line per pair followed by totals.
func Summary(outcomes []Outcome) string {
	var b strings.Builder
	var ok, unreachable, failed int
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
			fmt.Fprintf(&b, "%-30s error: %v\n", o.Pair, o.Err)
		case o.Reachable:
			ok++
			fmt.Fprintf(&b, "%-30s %s, %d changes\n", o.Pair, o.Cost, o.Changes)
		default:
			unreachable++
			fmt.Fprintf(&b, "%-30s unreachable\n", o.Pair)
		}
	}
	fmt.Fprintf(&b, "%d reachable, %d unreachable, %d failed\n", ok, unreachable, failed)
	return b.String()
}
