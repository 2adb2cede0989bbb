// Package main runs the risk engine service: HTTP API, watchlist scheduler
// and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"solana-risk-engine/internal/api"
	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/engine"
	"solana-risk-engine/internal/ingestion"
	"solana-risk-engine/internal/observability"
	"solana-risk-engine/internal/orchestrator"
	"solana-risk-engine/internal/solana"
	"solana-risk-engine/internal/storage"
	chstore "solana-risk-engine/internal/storage/clickhouse"
	"solana-risk-engine/internal/storage/memory"
	"solana-risk-engine/internal/storage/migrations"
	pgstore "solana-risk-engine/internal/storage/postgres"
	"solana-risk-engine/internal/storage/rediscache"
	"solana-risk-engine/internal/traces"
)

const serviceName = "solana-risk-engine"

// stores holds the publication sinks and the readiness checks of their backends.
type stores struct {
	reports     storage.ReportStore
	history     storage.SignalHistoryStore
	reportCache storage.ReportCache
	checks      map[string]api.HealthCheck
}

func main() {
	rt := config.LoadRuntime()

	// Flags override env
	flag.StringVar(&rt.RPCEndpoint, "rpc-endpoint", rt.RPCEndpoint, "Solana RPC HTTP endpoint")
	flag.StringVar(&rt.WSEndpoint, "ws-endpoint", rt.WSEndpoint, "Solana WebSocket endpoint (slot subscription)")
	flag.StringVar(&rt.HTTPAddr, "http-addr", rt.HTTPAddr, "HTTP API listen address")
	flag.StringVar(&rt.PolicyFile, "policy", rt.PolicyFile, "Risk policy YAML file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage even if DSNs are set")
	flag.Parse()

	logger := config.NewLogger(os.Stdout, rt.LogLevel, rt.LogFormat).With("service", serviceName)

	if err := run(rt, *useMemory, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(rt *config.Runtime, useMemory bool, logger *slog.Logger) error {
	policy, err := config.LoadPolicy(rt.PolicyFile)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTraces, err := traces.Init(ctx, rt.OTLPEndpoint, serviceName, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTraces(shutdownCtx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	st, closeStores, err := createStores(ctx, rt, useMemory, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer closeStores()

	rpc := solana.NewHTTPClient(rt.RPCEndpoint, solana.WithLatencyObserver(observability.RecordRPCLatency))
	source, err := ingestion.NewRPCSource(rpc, ingestion.RPCSourceOptions{Pools: policy.Pools})
	if err != nil {
		return fmt.Errorf("create fact source: %w", err)
	}

	eng, err := engine.New(policy)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	cache := ingestion.NewSnapshotCache(rt.CacheHorizonSlots)
	pipeline := ingestion.NewPipeline(ingestion.PipelineOptions{
		Collector: ingestion.NewCollector(source, ingestion.CollectorOptions{
			Timeout:       rt.EvalTimeout,
			WindowSlots:   policy.Window.Slots,
			WalletWorkers: rt.Workers,
			Logger:        logger,
		}),
		Cache:             cache,
		Engine:            eng,
		Reports:           st.reports,
		History:           st.history,
		ReportCache:       st.reportCache,
		HighRiskThreshold: policy.Scoring.HighRiskThreshold,
		Logger:            logger,
	})

	orchOpts := orchestrator.Options{
		Evaluator:    pipeline,
		Cache:        cache,
		Watchlist:    rt.Watchlist,
		Workers:      rt.Workers,
		QueueSize:    rt.QueueSize,
		SlotGetter:   rpc,
		PollInterval: rt.PollInterval,
		Logger:       logger,
	}
	if rt.WSEndpoint != "" {
		sub, err := solana.NewSlotSubscriber(ctx, rt.WSEndpoint, nil, logger)
		if err != nil {
			logger.Warn("slot subscription unavailable, polling instead", "error", err)
		} else {
			defer sub.Close()
			orchOpts.Slots = sub
		}
	}
	orch := orchestrator.New(orchOpts)

	st.checks["solana_rpc"] = func(ctx context.Context) error {
		_, err := rpc.GetSlot(ctx)
		return err
	}

	server := api.NewServer(api.Options{
		Addr:           rt.HTTPAddr,
		Evaluator:      pipeline,
		Reports:        st.reports,
		History:        st.history,
		Purchases:      pipeline,
		ReportCache:    st.reportCache,
		Slots:          rpc,
		Metrics:        observability.Handler(),
		Checks:         st.checks,
		RateLimitRPS:   rt.RateLimitRPS,
		RateLimitBurst: rt.RateLimitBurst,
		EvalTimeout:    rt.EvalTimeout,
		Logger:         logger,
	})

	// Signal handling
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}

		select {
		case sig := <-sigCh:
			logger.Error("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()
	defer close(done)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := orch.Run(ctx); err != nil {
			errCh <- fmt.Errorf("orchestrator: %w", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
			cancel()
		}
	}()

	logger.Info("server started",
		"http_addr", rt.HTTPAddr,
		"watchlist", len(rt.Watchlist),
		"pools", len(policy.Pools),
		"workers", rt.Workers,
	)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown failed", "error", err)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	logger.Info("server stopped")
	return errors.Join(errs...)
}

// createStores opens the configured backends, falling back to memory when a
// backend is not configured.
func createStores(ctx context.Context, rt *config.Runtime, useMemory bool, logger *slog.Logger) (*stores, func(), error) {
	st := &stores{
		reports:     memory.NewReportStore(),
		history:     memory.NewSignalHistoryStore(),
		reportCache: memory.NewReportCache(),
		checks:      make(map[string]api.HealthCheck),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if useMemory {
		logger.Info("using in-memory storage")
		return st, cleanup, nil
	}

	if rt.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, rt.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if len(applied) > 0 {
			logger.Info("postgres migrations applied", "versions", applied)
		}
		st.reports = pgstore.NewReportStore(pool)
		st.checks["postgres"] = pool.Check
		logger.Info("report store: postgres")
	}

	if rt.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, rt.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = conn.Close() })
		st.history = chstore.NewSignalHistoryStore(conn)
		st.checks["clickhouse"] = conn.Check
		logger.Info("signal history store: clickhouse")
	}

	if rt.RedisAddr != "" {
		rc, err := rediscache.New(ctx, rediscache.Options{
			Addr:     rt.RedisAddr,
			Password: rt.RedisPassword,
			TTL:      rt.ReportCacheTTL,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rc.Close() })
		st.reportCache = rc
		st.checks["redis"] = rc.Check
		logger.Info("report cache: redis")
	}

	return st, cleanup, nil
}
