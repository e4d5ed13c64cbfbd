// Package planner answers journey planning requests over NATS. Each request
// is admitted by a rate limiter, resolved against station ids and searched
// in its own read transaction.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/WessleyAI/journeyplanner/engine/journey"
	"github.com/WessleyAI/journeyplanner/engine/search"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
	"github.com/WessleyAI/journeyplanner/pkg/natsutil"
	"github.com/WessleyAI/journeyplanner/pkg/resilience"
)

// Options configures the planner.
type Options struct {
	Limits journey.Limits
	// TxTimeout bounds each request's read transaction.
	TxTimeout time.Duration
	// Rate is the admitted requests per second; Burst the bucket size.
	// A non-positive Rate disables limiting.
	Rate    float64
	Burst   int
	Breaker resilience.BreakerOpts
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Limits:    journey.DefaultLimits(),
		TxTimeout: 30 * time.Second,
		Rate:      50,
		Burst:     100,
		Breaker:   resilience.DefaultBreakerOpts,
	}
}

// Service is the planning service.
type Service struct {
	db      graph.Database
	opts    Options
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	limiter *rate.Limiter
	breaker *resilience.Breaker
	plan    fn.Stage[incoming, PlanResponse]
}

type incoming struct {
	id  string
	req PlanRequest
}

type query struct {
	id      string
	from    string
	to      []string
	date    graph.Date
	clock   time.Duration
	limits  journey.Limits
	modes   journey.ModeSet
	explain bool
}

// New creates a planner over db. A nil m records no metrics.
func New(db graph.Database, opts Options, m *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Breaker.Trips == nil {
		opts.Breaker.Trips = storeFailure
	}
	if opts.Breaker.OnChange == nil && m != nil {
		opts.Breaker.OnChange = m.breakerState
	}
	s := &Service{
		db:      db,
		opts:    opts,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("engine/planner"),
		limiter: resilience.NewLimiter(opts.Rate, opts.Burst),
		breaker: resilience.NewBreaker(opts.Breaker),
	}
	s.plan = resilience.LimiterStage(s.limiter, fn.Then(
		fn.Traced("planner.parse", s.parse),
		fn.Traced("planner.search", resilience.BreakerStage(s.breaker, s.search)),
	))
	return s
}

// Serve subscribes the planner to Subject in the Queue group.
func (s *Service) Serve(nc *nats.Conn) (*nats.Subscription, error) {
	return natsutil.Serve(nc, Subject, Queue, s.Handle, s.malformed)
}

// Plan sends req to a planner listening on nc.
func Plan(ctx context.Context, nc *nats.Conn, req PlanRequest) (PlanResponse, error) {
	return natsutil.Request[PlanRequest, PlanResponse](ctx, nc, Subject, req)
}

// Handle answers one request. Failures are reported in the response.
func (s *Service) Handle(ctx context.Context, req PlanRequest) PlanResponse {
	id := uuid.NewString()
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "planner.plan", trace.WithAttributes(
		attribute.String("plan.id", id),
		attribute.String("plan.from", req.From),
		attribute.StringSlice("plan.to", req.To),
	))
	defer span.End()

	resp, err := s.plan(ctx, incoming{id: id, req: req}).Unwrap()
	var code string
	if err != nil {
		code = codeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		level := slog.LevelWarn
		if code == CodeInvalidRequest || code == CodeRateLimited {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "plan failed", "request", id, "code", code, "err", err)
		resp = PlanResponse{Journeys: []Journey{}, Error: &Error{Code: code, Message: err.Error()}}
	} else {
		s.logger.Info("plan done", "request", id, "from", req.From, "journeys", len(resp.Journeys), "duration", time.Since(started))
	}
	resp.RequestID = id
	s.metrics.observePlan(code, started)
	return resp
}

func (s *Service) malformed(err error) PlanResponse {
	s.metrics.observePlan(CodeInvalidRequest, time.Now())
	return PlanResponse{
		RequestID: uuid.NewString(),
		Journeys:  []Journey{},
		Error:     &Error{Code: CodeInvalidRequest, Message: err.Error()},
	}
}

func (s *Service) parse(_ context.Context, in incoming) fn.Result[query] {
	req := in.req
	q := query{id: in.id, from: req.From, to: req.To, limits: s.opts.Limits, explain: req.Explain}
	if req.From == "" {
		return fn.Err[query](&journey.RequestError{Field: "from", Reason: "missing"})
	}
	if len(req.To) == 0 {
		return fn.Err[query](&journey.RequestError{Field: "to", Reason: "missing"})
	}
	date, err := graph.ParseDate(req.Date)
	if err != nil {
		return fn.Err[query](&journey.RequestError{Field: "date", Reason: err.Error()})
	}
	q.date = date
	if q.clock, err = journey.ParseClock(req.Time); err != nil {
		return fn.Err[query](err)
	}
	if req.MaxJourneys != 0 {
		q.limits.MaxJourneys = req.MaxJourneys
	}
	if req.MaxChanges != nil {
		q.limits.MaxChanges = *req.MaxChanges
	}
	if req.MaxInitialWaitMinutes != nil {
		q.limits.MaxInitialWait = time.Duration(*req.MaxInitialWaitMinutes) * time.Minute
	}
	if req.MaxDurationMinutes != 0 {
		q.limits.MaxDuration = time.Duration(req.MaxDurationMinutes) * time.Minute
	}
	if req.Expansion != "" {
		if q.limits.Expansion, err = journey.ParseExpansionPolicy(req.Expansion); err != nil {
			return fn.Err[query](err)
		}
	}
	if req.Stop != "" {
		if q.limits.Stop, err = journey.ParseStopPolicy(req.Stop); err != nil {
			return fn.Err[query](err)
		}
	}
	if len(req.Modes) > 0 {
		modes := make([]graph.TransportMode, len(req.Modes))
		for i, m := range req.Modes {
			modes[i] = graph.TransportMode(m)
		}
		q.modes = journey.NewModeSet(modes...)
	}
	return fn.Ok(q)
}

func (s *Service) search(ctx context.Context, q query) fn.Result[PlanResponse] {
	var txOpts []graph.TxOption
	if s.opts.TxTimeout > 0 {
		txOpts = append(txOpts, graph.WithTimeout(s.opts.TxTimeout))
	}
	tx, err := s.db.Begin(ctx, txOpts...)
	if err != nil {
		return fn.Err[PlanResponse](fmt.Errorf("planner: begin: %w", err))
	}
	defer tx.Close(ctx)

	from, err := s.station(ctx, tx, "from", q.from)
	if err != nil {
		return fn.Err[PlanResponse](err)
	}
	dests := make([]graph.NodeID, 0, len(q.to))
	for _, id := range q.to {
		n, err := s.station(ctx, tx, "to", id)
		if err != nil {
			return fn.Err[PlanResponse](err)
		}
		dests = append(dests, n.ID())
	}

	req := q.limits.Request(from.ID(), dests, q.date, q.clock)
	req.Modes = q.modes
	opts := []search.Option{search.WithLogger(s.logger.With("request", q.id))}
	if s.metrics != nil {
		opts = append(opts, search.WithRecorder(s.metrics))
	}
	srch, err := search.New(tx, req, opts...)
	if err != nil {
		return fn.Err[PlanResponse](err)
	}
	found, err := srch.FindPaths(ctx)
	if err != nil {
		return fn.Err[PlanResponse](err)
	}

	resp := PlanResponse{Journeys: make([]Journey, 0, len(found))}
	for _, j := range found {
		enc, err := encodeJourney(j)
		if err != nil {
			return fn.Err[PlanResponse](fmt.Errorf("planner: encode: %w", err))
		}
		resp.Journeys = append(resp.Journeys, enc)
	}
	if q.explain {
		resp.Diagnostics = srch.ReportDiagnostics()
	}
	return fn.Ok(resp)
}

func (s *Service) station(ctx context.Context, tx graph.Transaction, field, id string) (graph.Node, error) {
	n, err := tx.FindStation(ctx, id)
	if errors.Is(err, graph.ErrNotFound) {
		return nil, &journey.RequestError{Field: field, Reason: fmt.Sprintf("unknown station %q", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("planner: station %s: %w", id, err)
	}
	return n, nil
}

// storeFailure reports whether err points at the graph store rather than at
// the request or the graph's contents.
func storeFailure(err error) bool {
	switch {
	case errors.Is(err, journey.ErrInvalidRequest),
		errors.Is(err, graph.ErrStructural),
		errors.Is(err, graph.ErrInvalidDuration),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func codeOf(err error) string {
	switch {
	case errors.Is(err, resilience.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, resilience.ErrCircuitOpen):
		return CodeUnavailable
	case errors.Is(err, journey.ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, graph.ErrStructural), errors.Is(err, graph.ErrInvalidDuration):
		return CodeStructural
	case errors.Is(err, graph.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeInternal
}
