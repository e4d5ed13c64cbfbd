// Package search finds up to N journeys through the transit graph.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WessleyAI/journeyplanner/engine/evaluate"
	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/traverse"
)

// ErrAlreadyRun is returned when FindPaths is called twice on one Search.
var ErrAlreadyRun = errors.New("search: already run")

// Journey is a path from the start to a destination.
type Journey struct {
	Path *graph.Path
	// Cost is the sum of relationship costs along Path.
	Cost    time.Duration
	Changes int
	// Departure and Arrival are offsets from midnight of the query date.
	Departure  time.Duration
	Arrival    time.Duration
	Diversions []graph.RelationshipID
}

// Hops returns the number of relationships traversed.
func (j Journey) Hops() int { return j.Path.Len() }

// Stats summarises one search.
type Stats struct {
	ID        string
	Expansion journey.ExpansionPolicy
	Stop      journey.StopPolicy
	Duration  time.Duration
	// Expanded counts frontier entries whose relationships were followed.
	Expanded int
	// Evaluated counts candidate branches handed to the evaluator.
	Evaluated int
	Journeys  int
	Excluded  int
	// Keys is the number of distinct search states costed.
	Keys      int
	PeakQueue int
}

// Recorder observes finished searches.
type Recorder interface {
	ObserveSearch(Stats)
}

// Option configures a Search.
type Option func(*Search)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Search) { s.logger = l } }

// WithTracer sets the tracer spans are started from.
func WithTracer(t trace.Tracer) Option { return func(s *Search) { s.tracer = t } }

// WithRecorder reports Stats to r once the search ends.
func WithRecorder(r Recorder) Option { return func(s *Search) { s.recorder = r } }

// WithSampleLimit bounds the detailed exclusion reasons kept.
func WithSampleLimit(n int) Option { return func(s *Search) { s.sampleLimit = n } }

// Search is one invocation over one transaction. It is not restartable.
type Search struct {
	tx  graph.Reader
	req journey.PathRequest

	logger      *slog.Logger
	tracer      trace.Tracer
	recorder    Recorder
	sampleLimit int

	machine  *traverse.Machine
	frontier *frontier
	eval     *evaluate.Evaluator
	diag     *evaluate.Diagnostics
	lowest   *evaluate.LowestCostSeen

	found map[string]struct{}
	out   []Journey
	stats Stats
	ran   bool
}

// New prepares a search for req against tx.
func New(tx graph.Reader, req journey.PathRequest, opts ...Option) (*Search, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s := &Search{
		tx:          tx,
		req:         req,
		logger:      slog.Default(),
		tracer:      otel.Tracer("engine/search"),
		sampleLimit: evaluate.DefaultSampleLimit,
		found:       make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.machine = traverse.NewMachine(req)
	s.frontier = newFrontier(req.Expansion)
	s.diag = evaluate.NewDiagnostics(s.sampleLimit)
	s.lowest = evaluate.NewLowestCostSeen(req.MaxJourneys)
	s.eval = evaluate.New(req, s.frontier,
		evaluate.WithDiagnostics(s.diag),
		evaluate.WithLowestCostSeen(s.lowest),
	)
	s.stats = Stats{ID: uuid.NewString(), Expansion: req.Expansion, Stop: req.Stop}
	return s, nil
}

// FindPaths runs a search and returns its journeys.
func FindPaths(ctx context.Context, tx graph.Reader, req journey.PathRequest, opts ...Option) ([]Journey, error) {
	s, err := New(tx, req, opts...)
	if err != nil {
		return nil, err
	}
	return s.FindPaths(ctx)
}

// FindPaths runs the search. The journeys are ordered by cost, then hops, then
// relationship ids, and number at most MaxJourneys. An empty result means no
// journey exists within the request's limits.
func (s *Search) FindPaths(ctx context.Context) ([]Journey, error) {
	if s.ran {
		return nil, ErrAlreadyRun
	}
	s.ran = true

	ctx, span := s.tracer.Start(ctx, "search.find_paths", trace.WithAttributes(
		attribute.String("search.id", s.stats.ID),
		attribute.String("search.start", string(s.req.Start)),
		attribute.String("search.expansion", s.req.Expansion.String()),
		attribute.Int("search.max_journeys", s.req.MaxJourneys),
	))
	defer span.End()

	started := time.Now()
	err := s.run(ctx)
	s.finish(time.Since(started))
	span.SetAttributes(
		attribute.Int("search.journeys", s.stats.Journeys),
		attribute.Int("search.expanded", s.stats.Expanded),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("search failed", "search", s.stats.ID, "err", err)
		return nil, err
	}
	s.logger.Debug("search done", "search", s.stats.ID,
		"journeys", s.stats.Journeys, "expanded", s.stats.Expanded,
		"excluded", s.stats.Excluded, "duration", s.stats.Duration)
	return s.out, nil
}

// Diagnostics returns the exclusion collector of this search.
func (s *Search) Diagnostics() *evaluate.Diagnostics { return s.diag }

// ReportDiagnostics explains which branches were excluded and why.
func (s *Search) ReportDiagnostics() string { return s.diag.Report() }

// Stats returns the summary of a finished search.
func (s *Search) Stats() Stats { return s.stats }

func (s *Search) run(ctx context.Context) error {
	start, err := s.tx.GetNodeByID(ctx, s.req.Start)
	if err != nil {
		return fmt.Errorf("search: start %s: %w", s.req.Start, err)
	}
	js, err := s.machine.Start(start, s.req.Time)
	if err != nil {
		return fmt.Errorf("search: start %s: %w", s.req.Start, err)
	}
	s.frontier.offer(traverse.KeyOf(start.ID(), js), graph.NewPath(start), js)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("search: %w", err)
		}
		e, ok := s.frontier.next()
		if !ok {
			return nil
		}
		if e.finished {
			if s.accept(e.path, e.state) {
				return nil
			}
			continue
		}
		done, err := s.expand(ctx, e)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

type candidate struct {
	branch   evaluate.Branch
	decision evaluate.Decision
}

// expand follows the legal relationships out of e. It reports true once the
// stop policy is satisfied.
func (s *Search) expand(ctx context.Context, e *entry) (bool, error) {
	legal := e.state.State.Legal()
	if len(legal) == 0 {
		// an empty type list would match every relationship
		return false, nil
	}
	s.stats.Expanded++
	end := e.path.End()
	rels, err := s.tx.Relationships(ctx, end.ID(), graph.Outgoing, legal...)
	if err != nil {
		return false, fmt.Errorf("search: expand %s: %w", end.ID(), err)
	}

	var next []candidate
	for _, rel := range rels {
		c, err := s.branch(ctx, e, rel)
		if err != nil {
			return false, err
		}
		if c.decision != evaluate.ExcludeAndPrune {
			next = append(next, c)
		}
	}

	if s.req.Expansion == journey.DepthFirst {
		// the stack pops the last push first
		sort.SliceStable(next, func(i, j int) bool {
			return next[i].branch.State.Cost > next[j].branch.State.Cost
		})
	}
	for _, c := range next {
		b := c.branch
		switch {
		case c.decision == evaluate.IncludeAndContinue:
			s.frontier.offer(b.Key, b.Path, b.State)
		case s.req.Expansion == journey.CostPriority:
			s.frontier.offerFinished(b.Key, b.Path, b.State)
		default:
			if s.accept(b.Path, b.State) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Search) branch(ctx context.Context, e *entry, rel graph.Relationship) (candidate, error) {
	node, err := rel.EndNode(ctx, s.tx)
	if err != nil {
		return candidate{}, fmt.Errorf("search: follow %s: %w", rel.ID(), err)
	}
	step := traverse.Step{Rel: rel, Arrival: node}
	if rel.Type() == graph.ToService {
		ids, err := rel.TripIDs(s.tx)
		if err != nil {
			return candidate{}, fmt.Errorf("search: trips of %s: %w", rel.ID(), err)
		}
		step.Trips = journey.NewTripSet(ids...)
	}
	js, err := s.machine.Next(e.state, step)
	if err != nil {
		return candidate{}, fmt.Errorf("search: traverse %s: %w", rel.ID(), err)
	}
	path, err := e.path.Append(rel, node)
	if err != nil {
		return candidate{}, err
	}
	b := evaluate.Branch{Path: path, State: js, Key: traverse.KeyOf(node.ID(), js)}
	s.stats.Evaluated++
	d, err := s.eval.Evaluate(b)
	if err != nil {
		return candidate{}, fmt.Errorf("search: evaluate %s: %w", rel.ID(), err)
	}
	return candidate{branch: b, decision: d}, nil
}

// accept records a finished branch. It reports true once the stop policy is
// satisfied.
func (s *Search) accept(path *graph.Path, js *traverse.JourneyState) bool {
	sig := path.Signature()
	if _, dup := s.found[sig]; dup {
		return false
	}
	if s.lowest.CannotImprove(js.Cost) {
		s.diag.Record(evaluate.ReasonCannotImprove, fmt.Sprintf("%s at %s", sig, js.Cost))
		return false
	}
	s.found[sig] = struct{}{}
	s.lowest.Add(js.Cost)
	s.out = append(s.out, Journey{
		Path:       path,
		Cost:       js.Cost,
		Changes:    js.Changes(),
		Departure:  js.FirstDeparture,
		Arrival:    js.Clock,
		Diversions: js.Diversions(),
	})
	s.logger.Debug("journey found", "search", s.stats.ID, "cost", js.Cost, "hops", path.Len(), "changes", js.Changes())
	return s.req.Stop == journey.StopAtLimit && len(s.out) >= s.req.MaxJourneys
}

func (s *Search) finish(d time.Duration) {
	sort.SliceStable(s.out, func(i, j int) bool {
		a, b := s.out[i], s.out[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		if a.Hops() != b.Hops() {
			return a.Hops() < b.Hops()
		}
		return a.Path.Signature() < b.Path.Signature()
	})
	if len(s.out) > s.req.MaxJourneys {
		s.out = s.out[:s.req.MaxJourneys]
	}
	s.stats.Duration = d
	s.stats.Journeys = len(s.out)
	s.stats.Excluded = s.diag.Total()
	s.stats.Keys, s.stats.PeakQueue = s.frontier.stats()
	if s.recorder != nil {
		s.recorder.ObserveSearch(s.stats)
	}
}
