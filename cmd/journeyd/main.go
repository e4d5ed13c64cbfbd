// Package main runs the journey planning service: the NATS planner, a gRPC
// health endpoint, and an HTTP endpoint serving /metrics and /healthz.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/WessleyAI/journeyplanner/engine/planner"
	"github.com/WessleyAI/journeyplanner/engine/store"
	"github.com/WessleyAI/journeyplanner/pkg/config"
	"github.com/WessleyAI/journeyplanner/pkg/fn"
	"github.com/WessleyAI/journeyplanner/pkg/metrics"
	"github.com/WessleyAI/journeyplanner/pkg/mid"
	"github.com/WessleyAI/journeyplanner/pkg/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("journeyd exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Trace)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTracing(context.Background())

	// --- Graph store ---
	db, err := store.Open(ctx, cfg, fn.DefaultRetry, logger)
	if err != nil {
		return err
	}
	defer db.Close(context.Background())

	// --- Planner ---
	limits, err := cfg.Limits()
	if err != nil {
		return err
	}
	reg := metrics.New("journey")
	opts := planner.DefaultOptions()
	opts.Limits = limits
	opts.TxTimeout = cfg.Neo4j.TxTimeout.Duration
	opts.Rate = cfg.Planner.Rate
	opts.Burst = cfg.Planner.Burst
	svc := planner.New(db, opts, planner.NewMetrics(reg), logger)

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("journeyd"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := svc.Serve(nc)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", planner.Subject, err)
	}

	// --- gRPC health ---
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(planner.Subject, healthpb.HealthCheckResponse_SERVING)

	// --- HTTP ---
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("GET /healthz", handleHealth(nc.IsConnected))

	srv := &http.Server{
		Addr: ":" + cfg.Server.HTTPPort,
		Handler: mid.Chain(mux,
			mid.Recover(logger),
			mid.Logger(logger, "/metrics", "/healthz"),
			mid.Instrument(reg),
			mid.OTel("journeyd"),
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 2)
	go func() {
		logger.Info("grpc health server starting", "port", cfg.Server.GRPCPort)
		errCh <- gs.Serve(lis)
	}()
	go func() {
		logger.Info("http server starting", "port", cfg.Server.HTTPPort)
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("planner listening", "subject", planner.Subject, "queue", planner.Queue)

	var runErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	hs.Shutdown()
	if err := sub.Drain(); err != nil {
		logger.Warn("drain subscription", "err", err)
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil && runErr == nil {
		runErr = err
	}
	gs.GracefulStop()
	return runErr
}

// handleHealth reports ok while the NATS connection is up.
func handleHealth(connected func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ok", http.StatusOK
		if !connected() {
			status, code = "nats disconnected", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
