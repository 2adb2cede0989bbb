// Package main evaluates one token at one ledger height and prints the report.
//
// Usage:
//
//	evaluate --mint <address> [--height N] [--format json|markdown|csv] [--policy policy.yaml]
//	evaluate --mint <address> --height N --verify   (compare with the report stored in POSTGRES_DSN)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-risk-engine/internal/config"
	"solana-risk-engine/internal/engine"
	"solana-risk-engine/internal/ingestion"
	"solana-risk-engine/internal/observability"
	"solana-risk-engine/internal/reporting"
	"solana-risk-engine/internal/solana"
	pgstore "solana-risk-engine/internal/storage/postgres"
	"solana-risk-engine/internal/verification"
)

func main() {
	rt := config.LoadRuntime()

	mint := flag.String("mint", "", "Token mint address (required)")
	height := flag.Int64("height", -1, "Snapshot height (slot); defaults to the current slot")
	format := flag.String("format", "json", "Output format: json, markdown, csv")
	flag.StringVar(&rt.RPCEndpoint, "rpc-endpoint", rt.RPCEndpoint, "Solana RPC HTTP endpoint")
	flag.StringVar(&rt.PolicyFile, "policy", rt.PolicyFile, "Risk policy YAML file")
	flag.DurationVar(&rt.EvalTimeout, "timeout", rt.EvalTimeout, "Evaluation deadline")
	verify := flag.Bool("verify", false, "Re-evaluate and compare with the stored report instead of printing it")
	flag.Parse()

	// Logs go to stderr, the report to stdout
	logger := config.NewLogger(os.Stderr, rt.LogLevel, "text")

	if *mint == "" {
		fmt.Fprintln(os.Stderr, "--mint is required")
		flag.Usage()
		os.Exit(2)
	}
	outFormat, err := reporting.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	policy, err := config.LoadPolicy(rt.PolicyFile)
	if err != nil {
		logger.Error("load policy", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpc := solana.NewHTTPClient(rt.RPCEndpoint, solana.WithLatencyObserver(observability.RecordRPCLatency))

	if *height < 0 {
		slotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		slot, err := rpc.GetSlot(slotCtx)
		cancel()
		if err != nil {
			logger.Error("resolve current slot", "error", err)
			os.Exit(1)
		}
		*height = slot
	}

	source, err := ingestion.NewRPCSource(rpc, ingestion.RPCSourceOptions{Pools: policy.Pools})
	if err != nil {
		logger.Error("create fact source", "error", err)
		os.Exit(1)
	}
	eng, err := engine.New(policy)
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}

	pipeline := ingestion.NewPipeline(ingestion.PipelineOptions{
		Collector: ingestion.NewCollector(source, ingestion.CollectorOptions{
			Timeout:       rt.EvalTimeout,
			WindowSlots:   policy.Window.Slots,
			WalletWorkers: rt.Workers,
			Logger:        logger,
		}),
		Engine:            eng,
		HighRiskThreshold: policy.Scoring.HighRiskThreshold,
		Logger:            logger,
	})

	if *verify {
		os.Exit(runVerify(ctx, rt, pipeline, *mint, *height, logger))
	}

	report, err := pipeline.EvaluateToken(ctx, *mint, *height)
	if err != nil {
		logger.Error("evaluation failed", "mint", *mint, "height", *height, "error", err)
		os.Exit(1)
	}

	out, err := reporting.Render(report, outFormat, policy.Scoring.HighRiskThreshold)
	if err != nil {
		logger.Error("render report", "error", err)
		os.Exit(1)
	}
	fmt.Print(out)

	for _, n := range report.Notes {
		logger.Info("note", "signal", n.Signal, "kind", n.Kind, "detail", n.Detail)
	}
}

// runVerify compares a fresh evaluation with the stored report and returns the
// process exit code: 0 match, 3 divergence, 1 error.
func runVerify(ctx context.Context, rt *config.Runtime, evaluator verification.Evaluator, mint string, height int64, logger *slog.Logger) int {
	if rt.PostgresDSN == "" {
		logger.Error("--verify requires POSTGRES_DSN")
		return 1
	}
	pool, err := pgstore.NewPool(ctx, rt.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		return 1
	}
	defer pool.Close()

	res, err := verification.NewVerifier(pgstore.NewReportStore(pool), evaluator).Verify(ctx, mint, height)
	if err != nil {
		logger.Error("verification failed", "mint", mint, "height", height, "error", err)
		return 1
	}

	if res.Match {
		fmt.Printf("MATCH %s @ %d\n", mint, height)
		return 0
	}
	fmt.Printf("DIVERGED %s @ %d\n", mint, height)
	for _, d := range res.Divergences {
		fmt.Printf("  %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
	}
	return 3
}
