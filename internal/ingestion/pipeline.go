package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/engine"
	"solana-risk-engine/internal/normalization"
	"solana-risk-engine/internal/observability"
	"solana-risk-engine/internal/riskerr"
	"solana-risk-engine/internal/storage"
	"solana-risk-engine/internal/traces"
)

// PipelineOptions contains configuration for creating a Pipeline.
// Stores are optional; nil sinks are skipped.
type PipelineOptions struct {
	Collector         *Collector
	Cache             *SnapshotCache
	Engine            *engine.Engine
	Reports           storage.ReportStore
	History           storage.SignalHistoryStore
	ReportCache       storage.ReportCache
	HighRiskThreshold int // scores below this are logged as high risk
	Logger            *slog.Logger
}

// Pipeline evaluates tokens end to end: snapshot, detectors, publication.
type Pipeline struct {
	collector         *Collector
	cache             *SnapshotCache
	engine            *engine.Engine
	reports           storage.ReportStore
	history           storage.SignalHistoryStore
	reportCache       storage.ReportCache
	highRiskThreshold int
	logger            *slog.Logger
}

// NewPipeline creates a new evaluation pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewSnapshotCache(0)
	}
	return &Pipeline{
		collector:         opts.Collector,
		cache:             cache,
		engine:            opts.Engine,
		reports:           opts.Reports,
		history:           opts.History,
		reportCache:       opts.ReportCache,
		highRiskThreshold: opts.HighRiskThreshold,
		logger:            logger,
	}
}

// Cache returns the pipeline's snapshot cache.
func (p *Pipeline) Cache() *SnapshotCache {
	return p.cache
}

// EvaluateToken returns the trust score report of mint as of asOfHeight.
// Unresolved facts degrade signals to unknown confidence instead of failing;
// an error is returned only for invalid input or when ctx is done.
func (p *Pipeline) EvaluateToken(ctx context.Context, mint string, asOfHeight int64) (report *domain.TrustScoreReport, err error) {
	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "pipeline.evaluate_token", traces.Mint(mint), traces.Height(asOfHeight))
	defer func() {
		traces.RecordError(span, err)
		span.End()
	}()

	if !normalization.IsAddress(mint) {
		observability.RecordEvaluation(observability.OutcomeError, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: mint %q is not a base58 public key", riskerr.ErrInvalidInput, mint)
	}
	if asOfHeight < 0 {
		observability.RecordEvaluation(observability.OutcomeError, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: negative height %d", riskerr.ErrInvalidInput, asOfHeight)
	}

	snap, event, err := p.snapshot(ctx, mint, asOfHeight)
	if err != nil {
		observability.RecordEvaluation(observability.OutcomeError, time.Since(start).Seconds())
		return nil, err
	}
	if event == observability.CacheMiss {
		for fact := range snap.Unavailable {
			observability.RecordFactFailure(string(fact))
		}
	}

	report = p.engine.Evaluate(snap)
	span.SetAttributes(traces.Score(report.Score))

	complete := snap.Complete()
	p.publish(ctx, report, complete)

	outcome := observability.OutcomeComplete
	if !complete {
		outcome = observability.OutcomeDegraded
	}
	observability.RecordEvaluation(outcome, time.Since(start).Seconds())

	p.logger.Info("token evaluated",
		"mint", mint,
		"height", asOfHeight,
		"score", report.Score,
		"signals", len(report.Signals),
		"outcome", outcome,
		"cache", event,
		"duration", time.Since(start),
	)
	return report, nil
}

// snapshot returns the cached snapshot of mint at height, collecting it on a miss.
func (p *Pipeline) snapshot(ctx context.Context, mint string, height int64) (*domain.Snapshot, string, error) {
	snap, event, err := p.cache.Get(ctx, mint, height, func(ctx context.Context) (*domain.Snapshot, error) {
		ctx, span := traces.StartSpan(ctx, "pipeline.collect", traces.Mint(mint), traces.Height(height))
		defer span.End()
		snap, err := p.collector.Collect(ctx, mint, height)
		traces.RecordError(span, err)
		if snap != nil {
			for fact, reason := range snap.Unavailable {
				traces.FactUnavailable(span, string(fact), reason)
			}
		}
		return snap, err
	})
	observability.RecordCache(event)
	if err != nil {
		return nil, event, fmt.Errorf("collect snapshot %s@%d: %w", mint, height, err)
	}
	return snap, event, nil
}

// RecentPurchases returns up to limit buys from the transfer window of mint
// at asOfHeight, newest first. It shares the snapshot evaluations use.
func (p *Pipeline) RecentPurchases(ctx context.Context, mint string, asOfHeight int64, limit int) ([]domain.TransferEvent, bool, error) {
	if !normalization.IsAddress(mint) {
		return nil, false, fmt.Errorf("%w: mint %q is not a base58 public key", riskerr.ErrInvalidInput, mint)
	}
	if asOfHeight < 0 {
		return nil, false, fmt.Errorf("%w: negative height %d", riskerr.ErrInvalidInput, asOfHeight)
	}

	snap, _, err := p.snapshot(ctx, mint, asOfHeight)
	if err != nil {
		return nil, false, err
	}
	if !snap.TransfersResolved {
		var cause error
		if reason, ok := snap.Unavailable[domain.FactTransfers]; ok {
			cause = errors.New(reason)
		}
		return nil, false, riskerr.DataUnavailable("get_transfer_window", cause)
	}

	var buys []domain.TransferEvent
	for i := len(snap.Transfers) - 1; i >= 0 && len(buys) < limit; i-- {
		if e := snap.Transfers[i]; e.Kind == domain.TransferBuy {
			buys = append(buys, e)
		}
	}
	return buys, snap.TransfersPartial, nil
}

// publish writes the report to every configured sink. Sinks are write-once per
// (mint, height), so reports of degraded snapshots are not persisted and a
// later evaluation can publish the complete one. Failures are logged and
// counted, never returned.
func (p *Pipeline) publish(ctx context.Context, r *domain.TrustScoreReport, complete bool) {
	ctx, span := traces.StartSpan(ctx, "pipeline.publish", traces.Mint(r.Mint), traces.Height(r.SnapshotHeight))
	defer span.End()

	highRisk := r.Score < p.highRiskThreshold
	observability.RecordScore(r.Score, highRisk)
	for _, s := range r.Signals {
		if s.Confidence == domain.ConfidenceUnknown {
			observability.RecordUnknownSignal(string(s.Name))
		}
	}
	if highRisk {
		names := make([]string, 0, len(r.Signals))
		for _, s := range r.Signals {
			names = append(names, string(s.Name))
		}
		p.logger.Warn("high risk token",
			"mint", r.Mint,
			"height", r.SnapshotHeight,
			"score", r.Score,
			"threshold", p.highRiskThreshold,
			"signals", names,
		)
	}

	if !complete {
		p.logger.Debug("degraded report not persisted", "mint", r.Mint, "height", r.SnapshotHeight)
		return
	}

	if p.reports != nil {
		if err := p.reports.Insert(ctx, r); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			p.publishFailed("report_store", r, err)
		}
	}
	if p.history != nil {
		if records := storage.SignalRecordsFromReport(r); len(records) > 0 {
			if err := p.history.InsertBulk(ctx, records); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				p.publishFailed("signal_history", r, err)
			}
		}
	}
	if p.reportCache != nil {
		payload, err := r.CanonicalJSON()
		if err != nil {
			p.publishFailed("report_cache", r, err)
			return
		}
		if _, err := p.reportCache.SetIfAbsent(ctx, r.Mint, r.SnapshotHeight, payload); err != nil {
			p.publishFailed("report_cache", r, err)
		}
	}
}

func (p *Pipeline) publishFailed(sink string, r *domain.TrustScoreReport, err error) {
	observability.RecordPublishError(sink)
	p.logger.Error("publish report failed",
		"sink", sink,
		"mint", r.Mint,
		"height", r.SnapshotHeight,
		"error", err,
	)
}
